package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"consultoria/internal/core"
)

// SchemaVersion is written by Encode.
//
//	0: bare array of records with the original Spanish keys
//	1: bare array of snake_case records
//	2: {"schema_version": 2, "snapshots": [...]}
const SchemaVersion = 2

type document struct {
	SchemaVersion int               `json:"schema_version"`
	Snapshots     []json.RawMessage `json:"snapshots"`
}

// record is the persisted shape of a Snapshot. Pointer fields were added
// after the first release and may be missing.
type record struct {
	ID               int64            `json:"id"`
	Client           string           `json:"client"`
	Occupation       string           `json:"occupation"`
	Phone            string           `json:"phone"`
	Email            string           `json:"email"`
	Age              *int             `json:"age,omitempty"`
	Sex              string           `json:"sex,omitempty"`
	Date             core.Date        `json:"date"`
	PeriodLabel      string           `json:"period_label"`
	Month            string           `json:"month"`
	Year             int              `json:"year"`
	TotalIncome      decimal.Decimal  `json:"total_income"`
	TotalExpense     decimal.Decimal  `json:"total_expense"`
	Balance          decimal.Decimal  `json:"balance"`
	ProjectedSavings *decimal.Decimal `json:"projected_savings,omitempty"`
	DocumentBytes    []byte           `json:"document_bytes,omitempty"`
}

type legacyRecord struct {
	ID               int64            `json:"id"`
	Client           string           `json:"Cliente"`
	Occupation       string           `json:"Ocupacion"`
	Phone            string           `json:"Telefono"`
	Email            string           `json:"Email"`
	Age              *int             `json:"Edad"`
	Sex              string           `json:"Sexo"`
	Date             string           `json:"Fecha"`
	PeriodLabel      string           `json:"Periodo"`
	Month            string           `json:"Mes"`
	Year             int              `json:"Año"`
	TotalIncome      decimal.Decimal  `json:"Ingresos"`
	TotalExpense     decimal.Decimal  `json:"Egresos"`
	Balance          decimal.Decimal  `json:"Balance"`
	ProjectedSavings *decimal.Decimal `json:"Ahorro_Proyectado"`
	DocumentBytes    []byte           `json:"PDF_Bytes"`
}

// Encode serializes snapshots in the current schema. Document bytes are
// base64 encoded by encoding/json.
func Encode(snaps []Snapshot) ([]byte, error) {
	doc := struct {
		SchemaVersion int      `json:"schema_version"`
		Snapshots     []record `json:"snapshots"`
	}{SchemaVersion: SchemaVersion, Snapshots: make([]record, 0, len(snaps))}
	for _, s := range snaps {
		doc.Snapshots = append(doc.Snapshots, fromSnapshot(s))
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses any known schema version and fills defaults for fields the
// writing version did not know about.
func Decode(data []byte) ([]Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raws []json.RawMessage
	version := 1
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decode snapshot list: %w", err)
		}
	case '{':
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode snapshot document: %w", err)
		}
		if doc.SchemaVersion > SchemaVersion {
			return nil, fmt.Errorf("unsupported schema version %d", doc.SchemaVersion)
		}
		version = doc.SchemaVersion
		raws = doc.Snapshots
	default:
		return nil, fmt.Errorf("decode snapshots: unexpected leading byte %q", data[0])
	}

	snaps := make([]Snapshot, 0, len(raws))
	for i, raw := range raws {
		s, err := decodeRecord(raw, version)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot %d: %w", i, err)
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

func decodeRecord(raw json.RawMessage, version int) (Snapshot, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Snapshot{}, err
	}
	if _, legacy := probe["Cliente"]; legacy || version == 0 {
		var lr legacyRecord
		if err := json.Unmarshal(raw, &lr); err != nil {
			return Snapshot{}, err
		}
		return lr.toSnapshot(), nil
	}
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Snapshot{}, err
	}
	return r.toSnapshot(), nil
}

func fromSnapshot(s Snapshot) record {
	age := s.Age
	r := record{
		ID:            s.ID,
		Client:        s.Client,
		Occupation:    s.Occupation,
		Phone:         s.Phone,
		Email:         s.Email,
		Age:           &age,
		Sex:           string(s.Sex),
		Date:          s.Date,
		PeriodLabel:   s.PeriodLabel,
		Month:         s.Month,
		Year:          s.Year,
		TotalIncome:   s.TotalIncome,
		TotalExpense:  s.TotalExpense,
		Balance:       s.Balance,
		DocumentBytes: s.Document,
	}
	if s.ProjectedSavings.Valid {
		v := s.ProjectedSavings.Decimal
		r.ProjectedSavings = &v
	}
	return r
}

func (r record) toSnapshot() Snapshot {
	s := Snapshot{
		ID:           r.ID,
		Client:       r.Client,
		Occupation:   r.Occupation,
		Phone:        r.Phone,
		Email:        r.Email,
		Age:          ageOrDefault(r.Age),
		Sex:          sexOrDefault(r.Sex),
		Date:         r.Date,
		PeriodLabel:  r.PeriodLabel,
		Month:        r.Month,
		Year:         r.Year,
		TotalIncome:  r.TotalIncome,
		TotalExpense: r.TotalExpense,
		Balance:      r.Balance,
		Document:     r.DocumentBytes,
	}
	if r.ProjectedSavings != nil {
		s.ProjectedSavings = decimal.NewNullDecimal(*r.ProjectedSavings)
	}
	return s
}

func (r legacyRecord) toSnapshot() Snapshot {
	var date core.Date
	if r.Date != "" {
		// Unparseable legacy dates are dropped rather than failing the load.
		_ = date.UnmarshalJSON([]byte(`"` + strings.TrimSpace(r.Date) + `"`))
	}
	s := Snapshot{
		ID:           r.ID,
		Client:       r.Client,
		Occupation:   r.Occupation,
		Phone:        r.Phone,
		Email:        r.Email,
		Age:          ageOrDefault(r.Age),
		Sex:          sexOrDefault(r.Sex),
		Date:         date,
		PeriodLabel:  r.PeriodLabel,
		Month:        r.Month,
		Year:         r.Year,
		TotalIncome:  r.TotalIncome,
		TotalExpense: r.TotalExpense,
		Balance:      r.Balance,
		Document:     r.DocumentBytes,
	}
	if r.ProjectedSavings != nil {
		s.ProjectedSavings = decimal.NewNullDecimal(*r.ProjectedSavings)
	}
	return s
}

func ageOrDefault(age *int) int {
	if age == nil || *age < 1 {
		return core.DefaultAge
	}
	return *age
}

func sexOrDefault(s string) core.Sex {
	if strings.TrimSpace(s) == "" {
		return core.SexUnspecified
	}
	return core.ParseSex(s)
}
