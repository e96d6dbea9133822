package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeName(""))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestNormalizeName_Uppercase(t *testing.T) {
	assert.Equal(t, "ABC POOL", NormalizeName("abc pool"))
}

func TestNormalizeName_StripSuffix(t *testing.T) {
	assert.Equal(t, "ABC POOL", NormalizeName("ABC Pool LLC"))
	assert.Equal(t, "ABC POOL", NormalizeName("ABC Pool, Inc."))
	assert.Equal(t, "ABC POOL", NormalizeName("ABC Pool Corp"))
	assert.Equal(t, "ABC POOL", NormalizeName("ABC Pool Co."))
}

func TestNormalizeName_OnlyOneSuffix(t *testing.T) {
	assert.Equal(t, "ABC POOL CO", NormalizeName("ABC Pool Co LLC"))
}

func TestNormalizeName_Punctuation(t *testing.T) {
	assert.Equal(t, "JOES POOL", NormalizeName("Joe's Pool"))
	assert.Equal(t, "JOES POOL", NormalizeName("Joe’s Pool"))
	assert.Equal(t, "SMITH AND SONS", NormalizeName("Smith & Sons"))
	assert.Equal(t, "AC POOL SERVICE", NormalizeName("A.C. Pool Service"))
}

func TestNormalizeName_DashAndSpaces(t *testing.T) {
	assert.Equal(t, "GREEN THUMB LAWN", NormalizeName("  Green-Thumb   Lawn "))
}

func TestNormalizeName_NFKC(t *testing.T) {
	// Fullwidth letters fold to ASCII.
	assert.Equal(t, "ABC POOL", NormalizeName("ＡＢＣ Pool"))
}

func TestNormalizeName_AbbreviationsKept(t *testing.T) {
	assert.Equal(t, "AC POOL SVC", NormalizeName("AC Pool Svc"))
	assert.NotEqual(t, NormalizeName("AC Pool Svc"), NormalizeName("A.C. Pool Service"))
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pool", "Pool"},
		{"  POOL ", "Pool"},
		{"pest   control", "Pest Control"},
		{"hvac", "HVAC"},
		{"Dog  Walking", "Dog Walking"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCategory(tt.in))
		})
	}
}

func TestKeyOf(t *testing.T) {
	assert.Equal(t, KeyOf("Joe's Pool", "pool"), KeyOf("joes pool", "POOL"))
}

func TestKeyOf_FoldsPunctuationAndSuffix(t *testing.T) {
	assert.Equal(t, KeyOf("Joes Pool", "Pool"), KeyOf("Joe's Pool Inc", "pool"))
	assert.NotEqual(t, KeyOf("AC Pool Svc", "Pool"), KeyOf("A.C. Pool Service", "Pool"))
}
