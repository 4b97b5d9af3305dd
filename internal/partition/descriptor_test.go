package partition

import (
	"testing"

	"github.com/desertwitch/gopart/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDescriptorValidate_Table tests descriptor validation against the
// medium size.
func TestDescriptorValidate_Table(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		desc    Descriptor
		wantErr bool
	}{
		{"Success_Fits", Descriptor{ID: "1", Base: 0, Size: 1024}, false},
		{"Success_EndsAtMediumEnd", Descriptor{ID: "1", Base: 1024, Size: 3072}, false},
		{"Fail_NoID", Descriptor{Base: 0, Size: 1024}, true},
		{"Fail_ZeroSize", Descriptor{ID: "1", Base: 0, Size: 0}, true},
		{"Fail_PastEnd", Descriptor{ID: "1", Base: 2048, Size: 4096}, true},
		{"Fail_BasePastEnd", Descriptor{ID: "1", Base: 8192, Size: 1}, true},
		{"Fail_Overflow", Descriptor{ID: "1", Base: 1, Size: ^uint64(0)}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.desc.Validate(4096)
			if tc.wantErr {
				require.ErrorIs(t, err, storage.ErrInvalidState)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestDescriptorEqual_Success tests the field by field comparison.
func TestDescriptorEqual_Success(t *testing.T) {
	t.Parallel()

	a := Descriptor{ID: "1", Base: 0, Size: 100, Live: true, Metadata: map[string]string{"name": "boot"}}
	b := a.Clone()

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Metadata["name"] = "root"
	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, "boot", a.Metadata["name"], "clone must not share metadata")

	c := a.Clone()
	c.Live = false
	assert.False(t, a.Equal(c))

	d := a.Clone()
	d.Size = 200
	assert.False(t, a.Equal(d))
}

// TestDescriptorFingerprint_Success_MetadataOrder tests that the fingerprint
// does not depend on map iteration order.
func TestDescriptorFingerprint_Success_MetadataOrder(t *testing.T) {
	t.Parallel()

	meta := map[string]string{}
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		meta[k] = k + k
	}

	d := Descriptor{ID: "7", Base: 512, Size: 512, Metadata: meta}
	want := d.Fingerprint()

	for range 20 {
		assert.Equal(t, want, d.Clone().Fingerprint())
	}
}
