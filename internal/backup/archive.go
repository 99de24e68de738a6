package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/iliyamo/hall-calendar/internal/database"
	"github.com/iliyamo/hall-calendar/internal/schema"
)

// FormatVersion is the layout version of the archive itself.
const FormatVersion = 1

// Archive member names.
const (
	ManifestFile = "manifest.json"
	SchemaFile   = "schema.json"
	DDLFile      = "schema.sql"
	DataFile     = "data.json"
)

// Manifest identifies a backup.
type Manifest struct {
	ID            string         `json:"id"`
	FormatVersion int            `json:"format_version"`
	SchemaVersion int            `json:"schema_version"`
	Dialect       string         `json:"dialect"`
	CreatedAt     time.Time      `json:"created_at"`
	Tables        map[string]int `json:"tables"`
}

// SchemaDoc is the structural schema stored next to the data.
type SchemaDoc struct {
	Version int            `json:"version"`
	Tables  []schema.Table `json:"tables"`
}

// Row maps column names to JSON values.  Decoded rows hold json.Number
// for numbers.
type Row map[string]any

// Data maps table names to their rows in primary key order.
type Data map[string][]Row

// Archive is a decoded backup.  Manifest is zero when the archive was
// assembled from separate schema and data files.
type Archive struct {
	Manifest Manifest
	Schema   SchemaDoc
	Data     Data
}

// WriteArchive writes a as a zip.  schema.sql is rendered for d and is
// informational only.
func WriteArchive(w io.Writer, a Archive, d database.Dialect) error {
	zw := zip.NewWriter(w)
	members := []struct {
		name string
		body func() ([]byte, error)
	}{
		{ManifestFile, func() ([]byte, error) { return json.MarshalIndent(a.Manifest, "", "  ") }},
		{SchemaFile, func() ([]byte, error) { return json.MarshalIndent(a.Schema, "", "  ") }},
		{DDLFile, func() ([]byte, error) { return []byte(schema.Render(d, a.Schema.Tables)), nil }},
		{DataFile, func() ([]byte, error) { return json.Marshal(a.Data) }},
	}
	for _, m := range members {
		body, err := m.body()
		if err != nil {
			return fmt.Errorf("encode %s: %w", m.name, err)
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     m.name,
			Method:   zip.Deflate,
			Modified: a.Manifest.CreatedAt,
		})
		if err != nil {
			return err
		}
		if _, err := fw.Write(body); err != nil {
			return err
		}
	}
	return zw.Close()
}

// ReadArchive decodes a zip produced by WriteArchive.
func ReadArchive(r io.ReaderAt, size int64) (Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Archive{}, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var a Archive
	for _, m := range []struct {
		name string
		into func(io.Reader) error
	}{
		{ManifestFile, func(r io.Reader) error { return json.NewDecoder(r).Decode(&a.Manifest) }},
		{SchemaFile, func(r io.Reader) error { return decodeSchema(r, &a.Schema) }},
		{DataFile, func(r io.Reader) error { return decodeData(r, &a.Data) }},
	} {
		f, ok := files[m.name]
		if !ok {
			return Archive{}, fmt.Errorf("%w: missing %s", ErrInvalidArchive, m.name)
		}
		rc, err := f.Open()
		if err != nil {
			return Archive{}, fmt.Errorf("%w: open %s: %v", ErrInvalidArchive, m.name, err)
		}
		err = m.into(rc)
		_ = rc.Close()
		if err != nil {
			return Archive{}, fmt.Errorf("%w: decode %s: %v", ErrInvalidArchive, m.name, err)
		}
	}
	return a, nil
}

// ReadArchiveBytes is ReadArchive over an in-memory zip.
func ReadArchiveBytes(b []byte) (Archive, error) {
	return ReadArchive(bytes.NewReader(b), int64(len(b)))
}

// ReadArchiveFile opens and decodes the zip at path.
func ReadArchiveFile(path string) (Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return Archive{}, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return Archive{}, err
	}
	return ReadArchive(f, st.Size())
}

// ReadParts builds an archive from a schema.json and a data.json stream.
func ReadParts(schemaR, dataR io.Reader) (Archive, error) {
	var a Archive
	if err := decodeSchema(schemaR, &a.Schema); err != nil {
		return Archive{}, fmt.Errorf("%w: decode %s: %v", ErrInvalidArchive, SchemaFile, err)
	}
	if err := decodeData(dataR, &a.Data); err != nil {
		return Archive{}, fmt.Errorf("%w: decode %s: %v", ErrInvalidArchive, DataFile, err)
	}
	return a, nil
}

// ReadData decodes a data.json stream alone, for seeding.
func ReadData(r io.Reader) (Data, error) {
	var d Data
	if err := decodeData(r, &d); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidArchive, DataFile, err)
	}
	return d, nil
}

func decodeSchema(r io.Reader, into *SchemaDoc) error {
	return json.NewDecoder(r).Decode(into)
}

// decodeData keeps numbers as json.Number so 64 bit ids and amounts
// survive without float rounding.
func decodeData(r io.Reader, into *Data) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(into)
}
