// Package ingest decodes raw export files into string tables.
//
// Platform exports arrive as CSV in a handful of encodings (UTF-8 with or
// without BOM, GBK, GB18030) or as XLSX workbooks. This package owns the
// byte-level concerns - encoding detection, CSV reading, workbook sheet
// extraction - and hands the engine a plain RawTable of strings. A file
// whose bytes cannot be interpreted under any supported encoding fails with
// a decode error that is fatal for that file only.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	apperrors "crossledger-reconciliation-service/pkg/errors"
	"crossledger-reconciliation-service/pkg/logger"

	"crossledger-reconciliation-service/internal/extract"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads and decodes the file at path into a RawTable, dispatching on
// the file extension: .xlsx is parsed as a workbook, everything else as
// CSV text.
func Load(path string) (*extract.RawTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFileUnreadable, path, err)
	}

	return Decode(data, filepath.Base(path))
}

// Decode turns raw file bytes into a RawTable using the advisory filename
// to choose between workbook and CSV decoding.
func Decode(data []byte, filename string) (*extract.RawTable, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		return DecodeXLSX(data, filename)
	}
	return DecodeCSV(data, filename)
}

// DecodeCSV decodes CSV bytes, trying UTF-8 first and falling back to GBK
// and then GB18030. Fails with a decode error when no encoding yields
// clean text.
func DecodeCSV(data []byte, filename string) (*extract.RawTable, error) {
	log := logger.WithComponent("ingest").WithField("file", filename)

	text, encodingName, err := decodeText(data)
	if err != nil {
		log.WithError(err).Error("No supported encoding decoded the file")
		return nil, apperrors.DecodeError(apperrors.CodeUnknownEncoding, filename, err)
	}
	log.WithField("encoding", encodingName).Debug("Decoded CSV bytes")

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var headers []string
	var rows [][]string

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.WithError(err).Error("CSV read failed")
			return nil, apperrors.DecodeError(apperrors.CodeMalformedTable, filename, err)
		}

		if isEmptyRow(record) {
			continue
		}

		if headers == nil {
			headers = trimAll(record)
			continue
		}
		rows = append(rows, record)
	}

	if headers == nil {
		headers = []string{}
	}

	return &extract.RawTable{Headers: headers, Rows: rows, Filename: filename}, nil
}

// DecodeXLSX extracts the first sheet of a workbook as a RawTable.
func DecodeXLSX(data []byte, filename string) (*extract.RawTable, error) {
	log := logger.WithComponent("ingest").WithField("file", filename)

	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		log.WithError(err).Error("Failed to open workbook")
		return nil, apperrors.DecodeError(apperrors.CodeMalformedTable, filename, err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.DecodeError(apperrors.CodeEmptyTable, filename, nil)
	}

	allRows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.DecodeError(apperrors.CodeMalformedTable, filename, err)
	}

	var headers []string
	var rows [][]string
	for _, record := range allRows {
		if isEmptyRow(record) {
			continue
		}
		if headers == nil {
			headers = trimAll(record)
			continue
		}
		rows = append(rows, record)
	}

	if headers == nil {
		headers = []string{}
	}

	log.WithFields(logger.Fields{"sheet": sheets[0], "rows": len(rows)}).Debug("Decoded workbook sheet")
	return &extract.RawTable{Headers: headers, Rows: rows, Filename: filename}, nil
}

// decodeText attempts the supported encodings in preference order and
// returns the first clean decoding along with the encoding's name.
func decodeText(data []byte) (string, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	candidates := []struct {
		name    string
		decoder *encoding.Decoder
	}{
		{"gbk", simplifiedchinese.GBK.NewDecoder()},
		{"gb18030", simplifiedchinese.GB18030.NewDecoder()},
	}

	for _, candidate := range candidates {
		decoded, err := candidate.decoder.Bytes(data)
		if err != nil {
			continue
		}
		// The decoders substitute U+FFFD for unmappable bytes instead of
		// failing; treat any substitution as a failed decoding.
		if bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}
		return string(decoded), candidate.name, nil
	}

	return "", "", fmt.Errorf("no supported encoding produced valid text")
}

func isEmptyRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimAll(record []string) []string {
	trimmed := make([]string, len(record))
	for i, cell := range record {
		trimmed[i] = strings.TrimSpace(cell)
	}
	return trimmed
}
