package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line    string
		want    Sample
		wantErr bool
	}{
		{line: "75,98", want: Sample{HeartRate: 75, SpO2: 98}},
		{line: "75,98\n", want: Sample{HeartRate: 75, SpO2: 98}},
		{line: "  120 , 88\r\n", want: Sample{HeartRate: 120, SpO2: 88}},
		{line: "60,101", want: Sample{HeartRate: 60, SpO2: 101}},
		{line: "", wantErr: true},
		{line: "75", wantErr: true},
		{line: "75,98,1", wantErr: true},
		{line: "x,98", wantErr: true},
		{line: "75,", wantErr: true},
		{line: "{\"hr\":75}", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedLine)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSample_PayloadAndClamp(t *testing.T) {
	t.Parallel()

	s := Sample{HeartRate: 72, SpO2: 104}
	assert.Equal(t, "72,104\n", s.Payload())
	assert.Equal(t, Sample{HeartRate: 72, SpO2: 100}, s.Clamped())
	assert.Equal(t, Sample{HeartRate: 72, SpO2: 97}, Sample{HeartRate: 72, SpO2: 97}.Clamped())

	back, err := ParseLine(s.Clamped().Payload())
	require.NoError(t, err)
	assert.Equal(t, s.Clamped(), back)
}

func TestAlarmProfile_Classify(t *testing.T) {
	t.Parallel()

	standard := AlarmProfile{}
	copd := AlarmProfile{COPD: true, GOLDStage: 2}
	copdSevere := AlarmProfile{COPD: true, GOLDStage: 3}

	tests := []struct {
		name    string
		profile AlarmProfile
		sample  Sample
		want    Alarm
	}{
		{"normal", standard, Sample{72, 97}, Alarm{}},
		{"no signal", standard, Sample{0, 0}, Alarm{}},
		{"brady", standard, Sample{52, 97}, Alarm{Priority: PriorityMedium, Bradycardia: true}},
		{"tachy", standard, Sample{130, 97}, Alarm{Priority: PriorityMedium, Tachycardia: true}},
		{"hypoxia", standard, Sample{80, 88}, Alarm{Priority: PriorityMedium, Hypoxia: true}},
		{"hypoxia with tachy", standard, Sample{115, 88}, Alarm{Priority: PriorityHigh, Hypoxia: true, Tachycardia: true}},
		{"severe desat", standard, Sample{70, 84}, Alarm{Priority: PriorityHigh, Hypoxia: true}},
		{"over 100 clamps", standard, Sample{70, 140}, Alarm{}},
		{"copd in band", copd, Sample{70, 91}, Alarm{}},
		{"copd hyperoxia", copd, Sample{70, 95}, Alarm{Priority: PriorityMedium, Hyperoxia: true}},
		{"copd gold 2 floor", copd, Sample{70, 89}, Alarm{Priority: PriorityMedium, Hypoxia: true}},
		{"copd gold 3 floor", copdSevere, Sample{70, 89}, Alarm{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.Classify(tt.sample))
		})
	}
}

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "none", PriorityNone.String())
	assert.Equal(t, "medium", PriorityMedium.String())
	assert.Equal(t, "high", PriorityHigh.String())

	b, err := PriorityHigh.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "high", string(b))

	var p Priority
	require.NoError(t, p.UnmarshalText([]byte("medium")))
	assert.Equal(t, PriorityMedium, p)
	assert.Error(t, p.UnmarshalText([]byte("urgent")))
}

func TestSimulator(t *testing.T) {
	t.Parallel()

	a, b := NewSimulator(1), NewSimulator(1)
	for i := 0; i < 1000; i++ {
		sa, sb := a.Next(), b.Next()
		require.Equal(t, sa, sb, "step %d", i)
		require.GreaterOrEqual(t, sa.HeartRate, 45)
		require.LessOrEqual(t, sa.HeartRate, 140)
		require.GreaterOrEqual(t, sa.SpO2, 78)
		require.LessOrEqual(t, sa.SpO2, MaxSpO2)
	}
}
