package room

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/mmynk/tripmate/internal/models"
)

// Codec serializes room documents for storage. Decoding does not depend on
// the codec: Decode detects the format of the stored payload.
type Codec interface {
	Name() string
	Encode(doc *models.RoomData) ([]byte, error)
}

// JSONCodec writes documents as JSON.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(doc *models.RoomData) ([]byte, error) {
	return json.Marshal(doc)
}

// CBORCodec writes documents as canonical CBOR, which is noticeably smaller
// than JSON for large itineraries.
type CBORCodec struct {
	mode cbor.EncMode
}

// NewCBORCodec builds a CBORCodec with canonical encoding options.
func NewCBORCodec() (*CBORCodec, error) {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to build cbor encoder: %w", err)
	}
	return &CBORCodec{mode: mode}, nil
}

func (c *CBORCodec) Name() string { return "cbor" }

func (c *CBORCodec) Encode(doc *models.RoomData) ([]byte, error) {
	return c.mode.Marshal(doc)
}

// CodecByName returns the codec registered under name ("json" or "cbor").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return NewCBORCodec()
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

var errNotObject = errors.New("expected an object")

// Decode parses a stored payload into a fully populated RoomData.
//
// Array fields that are absent, null or not arrays become empty lists; a
// members list that is absent, not an array or empty becomes the default
// member; an absent or non-object subRooms becomes an empty map. A present
// field whose content cannot be decoded into its type yields a *DecodeError.
// The room id is taken from roomID when it is non-empty. Ownership annotations found in stored itineraries are removed.
func Decode(data []byte, roomID string) (*models.RoomData, error) {
	root := sniff(data)
	if root.kind() != kindObject {
		return nil, &DecodeError{RoomID: roomID, Err: errNotObject}
	}
	top, err := root.fields()
	if err != nil {
		return nil, &DecodeError{RoomID: roomID, Err: err}
	}

	doc := models.NewRoom(roomID, "")
	d := &decoder{roomID: roomID}
	d.scalar(top, "id", "id", &doc.ID)
	d.scalar(top, "password", "password", &doc.Password)
	d.list(top, "mainItinerary", "mainItinerary", &doc.MainItinerary)
	d.list(top, "mainNotes", "mainNotes", &doc.MainNotes)
	d.list(top, "expenses", "expenses", &doc.Expenses)
	d.list(top, "members", "members", &doc.Members)
	d.subRooms(top, doc)
	if d.err != nil {
		return nil, d.err
	}

	// The storage key is authoritative for the room id.
	if roomID != "" || doc.ID == "" {
		doc.ID = roomID
	}
	if len(doc.Members) == 0 {
		doc.Members = []string{models.DefaultMember}
	}
	doc.MainItinerary = stripOwners(doc.MainItinerary)
	return doc, nil
}

type decoder struct {
	roomID string
	err    error
}

func (d *decoder) fail(path string, err error) {
	if d.err == nil {
		d.err = &DecodeError{RoomID: d.roomID, Field: path, Err: err}
	}
}

// scalar decodes a present, non-null field into out.
func (d *decoder) scalar(fields map[string]rawValue, name, path string, out any) {
	f, ok := fields[name]
	if !ok || f.kind() == kindNull {
		return
	}
	if err := f.decode(out); err != nil {
		d.fail(path, err)
	}
}

// list decodes an array field into out and leaves out untouched otherwise.
func (d *decoder) list(fields map[string]rawValue, name, path string, out any) {
	f, ok := fields[name]
	if !ok || f.kind() != kindArray {
		return
	}
	if err := f.decode(out); err != nil {
		d.fail(path, err)
	}
}

func (d *decoder) subRooms(top map[string]rawValue, doc *models.RoomData) {
	f, ok := top["subRooms"]
	if !ok || f.kind() != kindObject {
		return
	}
	entries, err := f.fields()
	if err != nil {
		d.fail("subRooms", err)
		return
	}

	for key, raw := range entries {
		path := "subRooms." + key
		if raw.kind() != kindObject {
			d.fail(path, errNotObject)
			return
		}
		fields, err := raw.fields()
		if err != nil {
			d.fail(path, err)
			return
		}

		sub := models.SubRoom{
			Itinerary: []models.ItineraryItem{},
			Notes:     []models.NoteItem{},
		}
		d.scalar(fields, "name", path+".name", &sub.Name)
		d.list(fields, "itinerary", path+".itinerary", &sub.Itinerary)
		d.list(fields, "notes", path+".notes", &sub.Notes)
		// The map key is authoritative: scope lookups go through it.
		sub.ID = key
		sub.Itinerary = stripOwners(sub.Itinerary)
		doc.SubRooms[key] = sub
	}
}

type rawKind int

const (
	kindOther rawKind = iota
	kindNull
	kindArray
	kindObject
)

// rawValue is an undecoded field of either wire format.
type rawValue interface {
	kind() rawKind
	decode(out any) error
	fields() (map[string]rawValue, error)
}

// sniff picks the wire format of a stored payload: JSON documents always start
// with '{', which is never the first byte of a CBOR map.
func sniff(data []byte) rawValue {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return jsonValue(trimmed)
	}
	return cborValue(data)
}

type jsonValue json.RawMessage

func (v jsonValue) kind() rawKind {
	b := bytes.TrimSpace(v)
	if len(b) == 0 {
		return kindNull
	}
	switch b[0] {
	case '[':
		return kindArray
	case '{':
		return kindObject
	case 'n':
		return kindNull
	}
	return kindOther
}

func (v jsonValue) decode(out any) error {
	return json.Unmarshal(v, out)
}

func (v jsonValue) fields() (map[string]rawValue, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, err
	}
	out := make(map[string]rawValue, len(m))
	for k, raw := range m {
		out[k] = jsonValue(raw)
	}
	return out, nil
}

type cborValue cbor.RawMessage

func (v cborValue) kind() rawKind {
	if len(v) == 0 {
		return kindNull
	}
	switch {
	case v[0] == 0xf6 || v[0] == 0xf7: // null, undefined
		return kindNull
	case v[0]>>5 == 4:
		return kindArray
	case v[0]>>5 == 5:
		return kindObject
	}
	return kindOther
}

func (v cborValue) decode(out any) error {
	return cbor.Unmarshal(v, out)
}

func (v cborValue) fields() (map[string]rawValue, error) {
	var m map[string]cbor.RawMessage
	if err := cbor.Unmarshal(v, &m); err != nil {
		return nil, err
	}
	out := make(map[string]rawValue, len(m))
	for k, raw := range m {
		out[k] = cborValue(raw)
	}
	return out, nil
}
