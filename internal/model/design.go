package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type ElementType string

const (
	ElementTypeText  ElementType = "text"
	ElementTypeImage ElementType = "image"
)

// DesignElement is one positioned overlay in a design layout. The two
// concrete kinds are TextElement and ImageElement; the JSON encoding is a
// tagged union on the "type" field. Rotation and scale are applied around
// the element's own center.
type DesignElement interface {
	ElementID() string
	ElementType() ElementType
}

type TextElement struct {
	ID         string      `json:"id"`
	Type       ElementType `json:"type"`
	Text       string      `json:"text"`
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	FontSize   float64     `json:"fontSize"`
	FontFamily string      `json:"fontFamily"`
	Fill       string      `json:"fill"`
	Rotation   float64     `json:"rotation"`
	ScaleX     float64     `json:"scaleX"`
	ScaleY     float64     `json:"scaleY"`
}

func (e *TextElement) ElementID() string        { return e.ID }
func (e *TextElement) ElementType() ElementType { return ElementTypeText }

type ImageElement struct {
	ID       string      `json:"id"`
	Type     ElementType `json:"type"`
	Src      string      `json:"src"` // data URL
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Rotation float64     `json:"rotation"`
	ScaleX   float64     `json:"scaleX"`
	ScaleY   float64     `json:"scaleY"`
}

func (e *ImageElement) ElementID() string        { return e.ID }
func (e *ImageElement) ElementType() ElementType { return ElementTypeImage }

// DesignLayout is an ordered collection of overlay elements. It is saved
// as one unit, replacing any prior layout for the code.
type DesignLayout struct {
	Elements []DesignElement `json:"elements"`
}

func (l *DesignLayout) UnmarshalJSON(data []byte) error {
	var raw struct {
		Elements []json.RawMessage `json:"elements"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	elements := make([]DesignElement, 0, len(raw.Elements))
	for i, msg := range raw.Elements {
		var tag struct {
			Type ElementType `json:"type"`
		}
		if err := json.Unmarshal(msg, &tag); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}

		switch tag.Type {
		case ElementTypeText:
			var el TextElement
			if err := json.Unmarshal(msg, &el); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			elements = append(elements, &el)
		case ElementTypeImage:
			var el ImageElement
			if err := json.Unmarshal(msg, &el); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			elements = append(elements, &el)
		default:
			return fmt.Errorf("element %d: unknown element type %q", i, tag.Type)
		}
	}

	l.Elements = elements
	return nil
}

// EnsureIDs assigns a fresh id to any element missing one. Element ids
// are the stable identity used by the editor for selection and updates.
func (l *DesignLayout) EnsureIDs() {
	for _, el := range l.Elements {
		switch e := el.(type) {
		case *TextElement:
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
		case *ImageElement:
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
		}
	}
}

// Value implements driver.Valuer so a layout can be stored in a JSONB column.
func (l DesignLayout) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner for reading a layout back from JSONB.
func (l *DesignLayout) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into DesignLayout", src)
	}
}
