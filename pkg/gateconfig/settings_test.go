package gateconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/perfgate/pkg/gate"
)

func TestParseIDList(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		requireOne bool
		want       []int
		wantErr    error
	}{
		{name: "single", input: "5", want: []int{5}},
		{name: "spaces and dupes", input: " 3, 1 ,3,2 ", want: []int{3, 1, 2}},
		{name: "blank optional", input: "  ", want: nil},
		{name: "blank required", input: "", requireOne: true, wantErr: ErrListEmpty},
		{name: "not numeric", input: "1,two", wantErr: ErrListNotNumeric},
		{name: "trailing comma", input: "1,", wantErr: ErrListNotNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDList(tt.input, tt.requireOne)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		input   string
		want    *int
		wantErr error
	}{
		{input: "", want: nil},
		{input: "1", want: intPtr(1)},
		{input: " 100 ", want: intPtr(100)},
		{input: "0", wantErr: ErrScoreOutOfRange},
		{input: "101", wantErr: ErrScoreOutOfRange},
		{input: "eighty", wantErr: ErrValueNotNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseScore(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOptionalNonNegative(t *testing.T) {
	got, err := ParseOptionalNonNegative("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseOptionalNonNegative("0")
	require.NoError(t, err)
	assert.Equal(t, 0, *got)

	_, err = ParseOptionalNonNegative("-1")
	assert.ErrorIs(t, err, ErrValueNegative)

	_, err = ParseOptionalNonNegative("1.5")
	assert.ErrorIs(t, err, ErrValueNotNumeric)
}

func TestFormatIDList(t *testing.T) {
	assert.Equal(t, "1,2,3", FormatIDList([]int{1, 2, 3}))
	assert.Equal(t, "", FormatIDList(nil))
}

func TestSettings_Apply(t *testing.T) {
	s := DefaultSettings()
	timeout := 60
	failOnError := false
	number := 7

	err := s.Apply(Overrides{
		TestIDs:            "4,5",
		Score:              "75",
		MaxCriticalDefects: "0",
		DefectIDs:          "1001",
		TimeoutSeconds:     &timeout,
		FailOnError:        &failOnError,
		BuildSystem:        "GitHub",
		BuildProject:       "api",
		BuildNumber:        &number,
		Report:             "report.json",
	})
	require.NoError(t, err)

	assert.Equal(t, []int{4, 5}, s.TestIDs)
	assert.Equal(t, 75, *s.ScoreFloor)
	assert.Equal(t, 0, *s.MaxCriticalDefects)
	assert.Equal(t, []int{1001}, s.WatchedDefectIDs)
	assert.Equal(t, time.Minute, s.PollTimeout)
	assert.False(t, s.FailOnError)
	assert.True(t, s.FailOnResults)
	assert.Equal(t, "report.json", s.Report)

	cfg, err := s.ThresholdConfig()
	require.NoError(t, err)
	assert.Equal(t, "GitHub api #7", cfg.Build().Label())
}

func TestSettings_ApplyKeepsManifestValues(t *testing.T) {
	s := DefaultSettings()
	s.TestIDs = []int{9}
	s.ScoreFloor = intPtr(60)

	require.NoError(t, s.Apply(Overrides{}))
	assert.Equal(t, []int{9}, s.TestIDs)
	assert.Equal(t, 60, *s.ScoreFloor)
}

func TestSettings_ApplyReportsField(t *testing.T) {
	tests := []struct {
		name      string
		overrides Overrides
		field     string
		wantErr   error
	}{
		{name: "test ids", overrides: Overrides{TestIDs: "a"}, field: "test-ids", wantErr: ErrListNotNumeric},
		{name: "score", overrides: Overrides{Score: "500"}, field: "score", wantErr: ErrScoreOutOfRange},
		{name: "critical", overrides: Overrides{MaxCriticalDefects: "-3"}, field: "critical", wantErr: ErrValueNegative},
		{name: "defects", overrides: Overrides{DefectIDs: "x"}, field: "defect-ids", wantErr: ErrListNotNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DefaultSettings().Apply(tt.overrides)
			var fieldErr *FieldError
			require.True(t, errors.As(err, &fieldErr))
			assert.Equal(t, tt.field, fieldErr.Field)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Settings)
		wantPath string
	}{
		{name: "no tests", mutate: func(s *Settings) { s.TestIDs = nil }, wantPath: "TestIDs"},
		{name: "negative test", mutate: func(s *Settings) { s.TestIDs = []int{-1} }, wantPath: "TestIDs[0]"},
		{name: "score high", mutate: func(s *Settings) { s.ScoreFloor = intPtr(120) }, wantPath: "ScoreFloor"},
		{name: "critical negative", mutate: func(s *Settings) { s.MaxCriticalDefects = intPtr(-1) }, wantPath: "MaxCriticalDefects"},
		{name: "negative timeout", mutate: func(s *Settings) { s.PollTimeout = -time.Second }, wantPath: "PollTimeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.TestIDs = []int{1}
			tt.mutate(s)

			err := s.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidationFailed)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.wantPath, verrs[0].Path)

			_, err = s.ThresholdConfig()
			assert.Error(t, err)
		})
	}
}

func TestSettings_ThresholdConfigDefaults(t *testing.T) {
	s := DefaultSettings()
	s.TestIDs = []int{1}

	cfg, err := s.ThresholdConfig()
	require.NoError(t, err)
	assert.Equal(t, gate.DefaultPollTimeout, cfg.PollTimeout())
	assert.True(t, cfg.FailOnError())
	assert.False(t, cfg.HasCriteria())
	assert.False(t, cfg.WaitForResults())
}

func intPtr(v int) *int { return &v }
