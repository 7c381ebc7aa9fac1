// Package sourcefile loads raw export files into the tabular form the
// format adapters consume. It understands local xlsx/xls and csv files
// plus gs:// URIs; which adapter interprets the rows is decided by
// configuration, never by content sniffing.
package sourcefile

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/ledgersync/internal/logger"
	"github.com/dvloznov/ledgersync/internal/sources"
	"github.com/xuri/excelize/v2"
)

// Load reads the file at pathOrURI and returns its rows. gs:// URIs are
// fetched from Cloud Storage first; everything else is read from the local
// filesystem.
func Load(ctx context.Context, pathOrURI string) (sources.RawInput, error) {
	log := logger.FromContext(ctx)

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(pathOrURI, "gs://") {
		data, err = fetchFromGCS(ctx, pathOrURI)
	} else {
		data, err = os.ReadFile(pathOrURI)
	}
	if err != nil {
		return sources.RawInput{}, fmt.Errorf("Load: reading %s: %w", pathOrURI, err)
	}

	origin := path.Base(pathOrURI)
	rows, err := decode(origin, data)
	if err != nil {
		return sources.RawInput{}, err
	}
	log.Debug().
		Str("file", pathOrURI).
		Int("rows", len(rows)).
		Msg("loaded source file")
	return sources.RawInput{Origin: origin, Rows: rows}, nil
}

func decode(origin string, data []byte) ([][]string, error) {
	switch strings.ToLower(path.Ext(origin)) {
	case ".xlsx", ".xls", ".xlsm":
		return decodeExcel(origin, data)
	case ".csv":
		return decodeCSV(origin, data)
	default:
		return nil, &sources.ParseError{Origin: origin, Reason: "unsupported file extension"}
	}
}

// decodeExcel returns the rows of the first sheet. Bank exports put their
// data on a single sheet; additional sheets are ignored.
func decodeExcel(origin string, data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &sources.ParseError{Origin: origin, Reason: "opening workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &sources.ParseError{Origin: origin, Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &sources.ParseError{Origin: origin, Reason: "reading rows", Err: err}
	}
	return rows, nil
}

func decodeCSV(origin string, data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &sources.ParseError{Origin: origin, Reason: "reading csv", Err: err}
	}
	return rows, nil
}

// fetchFromGCS downloads the object bytes behind a gs:// URI.
func fetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	bucketName, objectPath := parts[0], parts[1]

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading bytes: %w", err)
	}
	return data, nil
}
