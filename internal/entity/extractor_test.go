package entity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loglens/loglens-ai/internal/logstore"
)

const entityCSV = `timestamp,severity,pod_name,pod_ip,_source.log
2024-03-01T10:00:00Z,INFO,logpod-1,172.17.13.5,"{""rpdname"":""MAWED07T01"",""CmMacAddress"":""1c:93:7c:2a:72:c3""}"
2024-03-01T10:05:00Z,ERROR,logpod-1,172.17.13.5,"{""rpdname"":""MAWED07T01"",""CmMacAddress"":""28:7a:ee:c9:66:4a""}"
2024-03-01T10:10:00Z,INFO,logpod-2,172.17.13.6,"{""CpeIpAddress"":""2001:558:6017:60:4950:96e8:be4f:f63b"",""CmMacAddress"":""1c:93:7c:2a:72:c3""}"
2024-03-01T10:15:00Z,INFO,logpod-2,172.17.13.6,"{""msg"":""dhcp server 10.40.3.9 assigned lease""}"
`

func entityStore(t *testing.T) *logstore.Store {
	t.Helper()
	s, err := logstore.Ingest(strings.NewReader(entityCSV), logstore.DefaultOptions(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestExtractDeduplicatesInFirstSeenOrder(t *testing.T) {
	s := entityStore(t)
	cat := DefaultCatalog([]string{s.PayloadColumn()})

	ext, err := cat.Extract(s.Load(), []string{"cm_mac"}, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"1c:93:7c:2a:72:c3", "28:7a:ee:c9:66:4a"}, ext.Values["cm_mac"])

	// 1c:93… appears in rows 0 and 2 of the scanned set.
	assert.Equal(t, []int{0, 2}, ext.Occurrences["cm_mac"]["1c:93:7c:2a:72:c3"])
	assert.Equal(t, []int{1}, ext.Occurrences["cm_mac"]["28:7a:ee:c9:66:4a"])
}

func TestMacDoesNotMatchInsideIPv6(t *testing.T) {
	s := entityStore(t)
	cat := DefaultCatalog([]string{s.PayloadColumn()})

	ext, err := cat.Extract(s.Load(), []string{"cpe_mac", "cpe_ip"}, 0)
	require.NoError(t, err)

	assert.Empty(t, ext.Values["cpe_mac"], "a MAC pattern must not fire inside an IPv6 literal")
	assert.Contains(t, ext.Values["cpe_ip"], "2001:558:6017:60:4950:96e8:be4f:f63b")
}

func TestInfrastructureColumnsAreNeverScanned(t *testing.T) {
	s := entityStore(t)
	cat := DefaultCatalog([]string{s.PayloadColumn()})

	ext, err := cat.Extract(s.Load(), []string{"ip_address"}, 0)
	require.NoError(t, err)

	// 172.17.13.5 only lives in the pod_ip metadata column; 10.40.3.9 is in
	// the payload and must be the only IPv4 extracted.
	assert.Equal(t, []string{"10.40.3.9"}, ext.Values["ip_address"])
}

func TestExtractUnknownTypes(t *testing.T) {
	s := entityStore(t)
	cat := DefaultCatalog([]string{s.PayloadColumn()})

	ext, err := cat.Extract(s.Load(), []string{"rpdname", "made_up"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"MAWED07T01"}, ext.Values["rpdname"])
	assert.Equal(t, []string{"made_up"}, ext.Skipped)

	// All-unknown request is an error.
	_, err = cat.Extract(s.Load(), []string{"nope"}, 0)
	assert.Error(t, err)

	_, err = cat.Extract(s.Load(), nil, 0)
	assert.Error(t, err)
}

func TestExtractRespectsPerTypeCap(t *testing.T) {
	s := entityStore(t)
	cat := DefaultCatalog([]string{s.PayloadColumn()})

	ext, err := cat.Extract(s.Load(), []string{"cm_mac"}, 1)
	require.NoError(t, err)
	assert.Len(t, ext.Values["cm_mac"], 1)
}

func TestSummaryListsExamples(t *testing.T) {
	s := entityStore(t)
	cat := DefaultCatalog([]string{s.PayloadColumn()})

	ext, err := cat.Extract(s.Load(), []string{"cm_mac", "rpdname"}, 0)
	require.NoError(t, err)

	summary := ext.Summary()
	assert.Contains(t, summary, "cm_mac: 2")
	assert.Contains(t, summary, "1c:93:7c:2a:72:c3")
	assert.Contains(t, summary, "rpdname: 1")
	assert.Contains(t, summary, "MAWED07T01")
}

func TestLoadCatalogFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entities.yaml")
	yaml := `patterns:
  session_id:
    - '"SessionId"\s*:\s*"([A-Z0-9-]+)"'
aliases:
  session_id:
    - session
    - session id
relationships:
  session_id:
    - cm_mac
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cat, err := LoadCatalog(path, []string{"_source.log"})
	require.NoError(t, err)

	typ, ok := cat.Get("session_id")
	require.True(t, ok)
	assert.Equal(t, []string{"session", "session id"}, typ.Aliases)
	assert.Equal(t, []string{"cm_mac"}, cat.Related("session_id"))
}

func TestLoadCatalogRejectsMalformedRegex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entities.yaml")
	yaml := `patterns:
  broken:
    - '([unclosed'
aliases:
  broken:
    - broken
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	_, err := LoadCatalog(path, []string{"_source.log"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile pattern")
}

func TestLoadCatalogRejectsMissingAliases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entities.yaml")
	yaml := `patterns:
  lonely:
    - 'x(y)z'
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	_, err := LoadCatalog(path, []string{"_source.log"})
	assert.Error(t, err)
}
