package excel

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"wjjfit/domain/event"
	"wjjfit/domain/sample"
	"wjjfit/internal/errors"
	"wjjfit/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func collect(t *testing.T, locator, set string) ([]event.Record, error) {
	t.Helper()
	var out []event.Record
	err := NewDataReader().Scan(context.Background(), locator, set, func(rec event.Record) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}

func TestScan_ExcelRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "RD_mu_WpJ.xlsx")
	events := testkit.UniformMassEvents(20, 60, 300)
	require.NoError(t, WriteRecords(path, "WJet", events))

	got, err := collect(t, path, "WJet")
	require.NoError(t, err)
	require.Len(t, got, 20)

	mjj, err := got[3].Float(event.FieldMjj)
	require.NoError(t, err)
	assert.InDelta(t, 60+3.5*12, mjj, 1e-9)

	pt, err := got[0].Floats(event.FieldJetPt)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 40, 0, 0, 0, 0}, pt)

	nj, err := got[0].Int(event.FieldNJets)
	require.NoError(t, err)
	assert.Equal(t, 2, nj)
}

func TestScan_ExcelHandWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	f := excelize.NewFile()
	_, err := f.NewSheet("WJet")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("WJet", "A1", &[]any{"Mass2j_PFCor", "evtNJ", "JetPFCor_Pt[0]", "JetPFCor_Pt[1]"}))
	require.NoError(t, f.SetSheetRow("WJet", "A2", &[]any{85.5, 2, 61.25, 33}))
	require.NoError(t, f.SetSheetRow("WJet", "A3", &[]any{120, 3, 70, 45}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	got, err := collect(t, path, "WJet")
	require.NoError(t, err)
	require.Len(t, got, 2)

	v, err := got[0].Float(event.FieldMjj)
	require.NoError(t, err)
	assert.Equal(t, 85.5, v)
	second, err := got[1].At(event.FieldJetPt, 1)
	require.NoError(t, err)
	assert.Equal(t, 45., second)
	slot5, err := got[1].At(event.FieldJetPt, 5)
	require.NoError(t, err)
	assert.Zero(t, slot5)
}

func TestScan_CSV(t *testing.T) {
	dir := t.TempDir()
	events := testkit.UniformMassEvents(10, 0, 100)
	require.NoError(t, WriteRecords(filepath.Join(dir, "WJet.csv"), "WJet", events))

	byFile, err := collect(t, filepath.Join(dir, "WJet.csv"), "WJet")
	require.NoError(t, err)
	byDir, err := collect(t, dir, "WJet")
	require.NoError(t, err)
	require.Len(t, byFile, 10)
	assert.Equal(t, byFile, byDir)

	mjj, err := byFile[9].Float(event.FieldMjj)
	require.NoError(t, err)
	assert.InDelta(t, 95, mjj, 1e-12)
}

func TestScan_NotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "RD_el_WpJ.xlsx")
	require.NoError(t, WriteRecords(path, "WJet", testkit.UniformMassEvents(2, 0, 1)))

	_, err := collect(t, path, "ZJet")
	assert.True(t, errors.IsNotFound(err))

	_, err = collect(t, filepath.Join(dir, "absent.xlsx"), "WJet")
	assert.True(t, errors.IsNotFound(err))

	_, err = collect(t, dir, "WJet")
	assert.True(t, errors.IsNotFound(err))
}

func TestScan_BadCell(t *testing.T) {
	path := filepath.Join(t.TempDir(), "WJet.csv")
	require.NoError(t, os.WriteFile(path, []byte("Mass2j_PFCor,evtNJ\n80,two\n"), 0o644))

	_, err := collect(t, path, "WJet")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

func TestScan_StopsOnCallbackError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "WJet.csv")
	require.NoError(t, WriteRecords(path, "WJet", testkit.UniformMassEvents(5, 0, 1)))

	calls := 0
	stop := errors.InternalError("stop")
	err := NewDataReader().Scan(context.Background(), path, "WJet", func(event.Record) error {
		calls++
		return stop
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, calls)
}

// cutStream replays rows and then reports err, like a worksheet stream that
// ends early
type cutStream struct {
	rows [][]string
	pos  int
	err  error
}

func (s *cutStream) Next() bool {
	if s.pos >= len(s.rows) {
		return false
	}
	s.pos++
	return true
}

func (s *cutStream) Columns(...excelize.Options) ([]string, error) {
	return s.rows[s.pos-1], nil
}

func (s *cutStream) Error() error { return s.err }

func TestScanRows_StreamError(t *testing.T) {
	rows := [][]string{{"Mass2j_PFCor", "evtNJ"}, {"80", "2"}}

	var got []event.Record
	collectAll := func(rec event.Record) error {
		got = append(got, rec)
		return nil
	}

	err := NewDataReader().scanRows(context.Background(), "WJet.xlsx",
		&cutStream{rows: rows, err: io.ErrUnexpectedEOF}, collectAll)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeSourceError))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Len(t, got, 1)

	got = nil
	require.NoError(t, NewDataReader().scanRows(context.Background(), "WJet.xlsx", &cutStream{rows: rows}, collectAll))
	assert.Len(t, got, 1)
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toy.xlsx")
	s := sample.New("toy", event.FieldMjj)
	for _, v := range []float64{61, 75.5, 299} {
		s.Add(v)
	}
	require.NoError(t, WriteSample(path, "WJet", s))

	got, err := collect(t, path, "WJet")
	require.NoError(t, err)
	require.Len(t, got, 3)
	v, err := got[1].Float(event.FieldMjj)
	require.NoError(t, err)
	assert.Equal(t, 75.5, v)
}
