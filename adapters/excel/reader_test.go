package excel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"abfunnel/domain/core"
	"abfunnel/domain/funnel"
	apperrors "abfunnel/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCSVWithSeparator(t *testing.T) {
	r := NewDataReader("events.txt", ReaderConfig{Separator: ';'}, nil)
	table, err := r.ReadCSV(strings.NewReader("\ufeffclient_id; visit_id ;process_step\n1;a;start\n\n2;b\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"client_id", "visit_id", "process_step"}, table.Headers)
	require.Len(t, table.Rows, 2, "blank lines are skipped")
	assert.Equal(t, "start", table.Rows[0]["process_step"])
	assert.Equal(t, "", table.Rows[1]["process_step"], "short rows are padded")
}

func TestReadDataMissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "nope.csv"), DefaultReaderConfig(), nil).ReadData()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadDataEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.csv", "")
	_, err := NewDataReader(path, DefaultReaderConfig(), nil).ReadData()
	assert.Error(t, err)
}

func TestReadExcelFirstSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"client_id", "Variation"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{1001, "Test"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{1002, "Control"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := NewDataReader(path, DefaultReaderConfig(), nil).ReadData()
	require.NoError(t, err)
	assert.Equal(t, []string{"client_id", "Variation"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "1001", table.Rows[0]["client_id"])
	assert.Equal(t, "Control", table.Rows[1]["Variation"])
}

func TestParseSeparator(t *testing.T) {
	sep, err := ParseSeparator(`\t`)
	require.NoError(t, err)
	assert.Equal(t, '\t', sep)

	sep, err = ParseSeparator("")
	require.NoError(t, err)
	assert.Equal(t, ',', sep)

	_, err = ParseSeparator(";;")
	assert.Error(t, err)
}

const eventsCSV = `client_id,visitor_id,visit_id,process_step,date_time
9988021,580560515_7732621733,781255054_21935453173_531117,step_3,2017-04-17 15:27:07
9988021,580560515_7732621733,781255054_21935453173_531117,step_2,2017-04-17 15:26:51
9988021,580560515_7732621733,781255054_21935453173_531117,step_2,2017-04-17 15:26:51
8320017,39393514_33118319366,960651974_70596002104_312201,confirm,2017-04-05 13:10:05
`

const rosterCSV = `client_id,Variation
9988021,Test
8320017,Control
`

func TestFileSourceLoadsEventsAndRoster(t *testing.T) {
	events := writeFile(t, "df_final_web_data.csv", eventsCSV)
	roster := writeFile(t, "df_final_experiment_clients.csv", rosterCSV)
	src := NewFileSource(events, "", roster, DefaultReaderConfig(), nil)

	loaded, err := src.LoadEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 4, "duplicates are removed by cleaning, not by the source")
	assert.Equal(t, funnel.StepThree, loaded[0].Step)
	assert.True(t, loaded[0].HasTime())

	assignments, err := src.LoadAssignments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, funnel.VariationTest, assignments["9988021"])
	assert.Equal(t, funnel.VariationControl, assignments["8320017"])

	profiles, err := src.LoadProfiles(context.Background())
	require.NoError(t, err)
	assert.Nil(t, profiles)
}

func TestFileSourceSchemaError(t *testing.T) {
	path := writeFile(t, "events.csv", "client_id,process_step\n1,start\n")
	_, err := NewFileSource(path, "", "", DefaultReaderConfig(), nil).LoadEvents(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeSchemaError, apperrors.GetCode(err))
	assert.True(t, errors.Is(err, core.ErrMissingColumn))
}

func TestFileSourceCancelledContext(t *testing.T) {
	path := writeFile(t, "events.csv", eventsCSV)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileSource(path, "", "", DefaultReaderConfig(), nil).LoadEvents(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
