package registryprobe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVersionNodeJS(t *testing.T) {
	version, err := parseVersion(KindNodeJS, []byte(`{"name":"express","version":"4.19.2"}`))
	assert.NoError(t, err)
	assert.Equal(t, "4.19.2", version)
}

func TestParseVersionPython(t *testing.T) {
	version, err := parseVersion(KindPython, []byte(`{"info":{"version":"3.1.0"}}`))
	assert.NoError(t, err)
	assert.Equal(t, "3.1.0", version)
}

func TestParseVersionMalformed(t *testing.T) {
	_, err := parseVersion(KindNodeJS, []byte(`not json`))
	assert.Error(t, err)

	_, err = parseVersion(KindNodeJS, []byte(`{"name":"express"}`))
	assert.Error(t, err)
}

func TestLookupReturnsEmptyMapForEmptyInput(t *testing.T) {
	p := New(4)
	results := p.Lookup(context.Background(), KindNodeJS, nil)
	assert.Empty(t, results)
}

func TestLookupUnreachableRegistryDegradesToUnknown(t *testing.T) {
	p := New(2)
	p.client.Timeout = 1
	results := p.Lookup(context.Background(), KindNodeJS, []string{"left-pad"})
	assert.Equal(t, "unknown", results["left-pad"])
}
