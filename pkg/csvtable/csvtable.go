// Package csvtable reads and writes header-led CSV tables into tagged structs.
package csvtable

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// ErrMissingColumns is returned when a table lacks a required header column.
var ErrMissingColumns = errors.New("missing columns")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode reads the whole table from r into out, a pointer to a slice of structs
// with csv tags, after checking that every required column is in the header.
// Extra columns are ignored.
func Decode(r io.Reader, out interface{}, required ...string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err == io.EOF {
		return fmt.Errorf("%w: table is empty", ErrMissingColumns)
	}
	if err != nil {
		return err
	}

	if missing := Missing(header, required); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ","))
	}

	return gocsv.UnmarshalBytes(data, out)
}

// Missing returns the required columns absent from header, in required order.
func Missing(header, required []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

// Encode writes in, a slice of structs with csv tags, as a table with a header row.
func Encode(w io.Writer, in interface{}) error {
	return gocsv.Marshal(in, w)
}
