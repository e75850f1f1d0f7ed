package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanPolicyEffectiveFrequency(t *testing.T) {
	p := ScanPolicy{
		DefaultFrequencyMinutes: 60,
		Overrides:               map[int64]int{7: 15},
	}

	assert.Equal(t, 15, p.EffectiveFrequency(7))
	assert.Equal(t, 60, p.EffectiveFrequency(8))
	assert.Equal(t, 60, p.EffectiveFrequency(0))
}

func TestScanPolicyNormalize(t *testing.T) {
	p := ScanPolicy{
		DefaultFrequencyMinutes: 60,
		Overrides:               map[int64]int{1: 60, 2: 30, 3: 60},
	}
	p.Normalize()

	assert.Equal(t, map[int64]int{2: 30}, p.Overrides)
}

func TestScanPolicyNormalizeNilOverrides(t *testing.T) {
	p := ScanPolicy{DefaultFrequencyMinutes: 60}
	p.Normalize()

	assert.NotNil(t, p.Overrides)
	assert.Empty(t, p.Overrides)
}
