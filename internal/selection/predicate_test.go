package selection

import (
	"testing"

	"wjjfit/domain/event"
	"wjjfit/internal/config"
	"wjjfit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJetCut(t *testing.T) {
	assert.Equal(t, "evtNJ==2 || evtNJ==3", JetCut(0))
	assert.Equal(t, "evtNJ==2 || evtNJ==3", JetCut(1))
	assert.Equal(t, "evtNJ==2", JetCut(2))
	assert.Equal(t, "evtNJ==4", JetCut(4))
}

func TestFullCuts_Text(t *testing.T) {
	p := config.Default()
	p.Cuts = "W_mt > 50."
	assert.Equal(t,
		"(((Mass2j_PFCor >= 60) && (Mass2j_PFCor <= 300)) && (evtNJ==2) && (W_mt > 50.))",
		FullCuts(p, false))

	p.MinTrunc, p.MaxTrunc = 65, 95
	assert.Equal(t,
		"((((Mass2j_PFCor >= 60) && (Mass2j_PFCor <= 65)) || ((Mass2j_PFCor >= 95) && (Mass2j_PFCor <= 300)))"+
			" && (evtNJ==2) && (W_mt > 50.))",
		FullCuts(p, true))
}

func TestFullCuts_ExactBounds(t *testing.T) {
	p := config.Default()
	p.MinMass, p.MaxMass = 60.0004, 299.5
	text := FullCuts(p, false)
	assert.Contains(t, text, "Mass2j_PFCor >= 60.0004")
	assert.Contains(t, text, "Mass2j_PFCor <= 299.5")

	pred, err := Compile(text)
	require.NoError(t, err)
	for m, want := range map[float64]bool{60.0002: false, 60.0004: true, 299.5: true, 299.6: false} {
		got, err := pred.Match(event.Record{"Mass2j_PFCor": m, "evtNJ": 2})
		require.NoError(t, err)
		assert.Equal(t, want, got, "mjj=%g", m)
	}
}

func TestPredicate_MassWindowAndJets(t *testing.T) {
	p := config.Default()
	pred, err := Compile(FullCuts(p.WithJetMultiplicity(0), false))
	require.NoError(t, err)

	tests := []struct {
		name string
		rec  event.Record
		want bool
	}{
		{"two jets in window", event.Record{"Mass2j_PFCor": 80.0, "evtNJ": 2}, true},
		{"three jets in window", event.Record{"Mass2j_PFCor": 80.0, "evtNJ": 3}, true},
		{"four jets", event.Record{"Mass2j_PFCor": 80.0, "evtNJ": 4}, false},
		{"below window", event.Record{"Mass2j_PFCor": 59.0, "evtNJ": 2}, false},
		{"on lower edge", event.Record{"Mass2j_PFCor": 60.0, "evtNJ": 2}, true},
		{"float jet count", event.Record{"Mass2j_PFCor": 100.0, "evtNJ": 3.0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pred.Match(tt.rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredicate_TruncatedWindow(t *testing.T) {
	p := config.Default()
	p.MinTrunc, p.MaxTrunc = 65, 95
	pred, err := Compile(FullCuts(p, true))
	require.NoError(t, err)

	for m, want := range map[float64]bool{62: true, 80: false, 96: true, 310: false} {
		got, err := pred.Match(event.Record{"Mass2j_PFCor": m, "evtNJ": 2})
		require.NoError(t, err)
		assert.Equal(t, want, got, "mjj=%g", m)
	}
}

func TestPredicate_AnalysisCuts(t *testing.T) {
	cuts := "(JetPFCor_Pt[0]>40.) && (W_mt > 50.) && (abs(JetPFCor_Eta[0]-JetPFCor_Eta[1])<1.2)" +
		" && (sqrt(JetPFCor_Pt[0]**2+JetPFCor_Pt[1]**2+2*JetPFCor_Pt[0]*JetPFCor_Pt[1]*cos(JetPFCor_Phi[0]-JetPFCor_Phi[1]))>45.)" +
		" && (JetPFCor_Pt[1]/Mass2j_PFCor>0.3)"
	pred, err := Compile(cuts)
	require.NoError(t, err)

	rec := event.Record{
		"Mass2j_PFCor": 90.0,
		"W_mt":         70.0,
		"JetPFCor_Pt":  []float64{60, 45, 0, 0, 0, 0},
		"JetPFCor_Eta": []float64{0.3, -0.5, 0, 0, 0, 0},
		"JetPFCor_Phi": []float64{0.1, 0.5, 0, 0, 0, 0},
	}
	ok, err := pred.Match(rec)
	require.NoError(t, err)
	assert.True(t, ok)

	rec["W_mt"] = 30.0
	ok, err = pred.Match(rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompile_EmptyMatchesAll(t *testing.T) {
	pred, err := Compile("  ")
	require.NoError(t, err)
	ok, err := pred.Match(event.Record{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile("Mass2j_PFCor >")
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))

	pred := MustCompile("sqrt(W_mt) > 3")
	_, err = pred.Match(event.Record{"W_mt": "high"})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}
