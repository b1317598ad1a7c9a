package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string        `env:"SAMPLE_NAME"`
	Quoted   string        `env:"SAMPLE_QUOTED"`
	Score    float64       `env:"SAMPLE_SCORE"`
	Workers  int           `env:"SAMPLE_WORKERS,required"`
	Enabled  bool          `env:"SAMPLE_ENABLED"`
	Timeout  time.Duration `env:"SAMPLE_TIMEOUT"`
	Skipped  string        `env:"SAMPLE_SKIPPED"`
	Untagged string
	hidden   string `env:"SAMPLE_HIDDEN"`
}

func TestMarshalEnv(t *testing.T) {
	s := &sample{
		Name:     "tuskmem",
		Quoted:   "two words",
		Score:    0.7,
		Workers:  4,
		Enabled:  true,
		Timeout:  15 * time.Second,
		Untagged: "x",
		hidden:   "y",
	}

	out, err := MarshalEnv(s)
	require.NoError(t, err)

	assert.Equal(t, "SAMPLE_NAME=tuskmem\n"+
		"SAMPLE_QUOTED=\"two words\"\n"+
		"SAMPLE_SCORE=0.7\n"+
		"SAMPLE_WORKERS=4\n"+
		"SAMPLE_ENABLED=true\n"+
		"SAMPLE_TIMEOUT=15s\n", out)
}

func TestMarshalEnv_MultipleAndEmpty(t *testing.T) {
	out, err := MarshalEnv(&sample{}, &sample{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, "SAMPLE_WORKERS=2\n", out)

	out, err = MarshalEnv(&sample{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMarshalEnv_RejectsNonStruct(t *testing.T) {
	_, err := MarshalEnv(sample{})
	require.Error(t, err)
}
