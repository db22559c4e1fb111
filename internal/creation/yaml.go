package creation

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// creationDoc is the import document. JSON documents parse too, being a
// subset of YAML.
type creationDoc struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Profiles []profileDoc `yaml:"profiles"`
}

type profileDoc struct {
	ID     string     `yaml:"id"`
	Name   string     `yaml:"name"`
	Events []eventDoc `yaml:"events"`
}

type eventDoc struct {
	ID      string      `yaml:"id"`
	Type    EventType   `yaml:"type"`
	Code    string      `yaml:"code"`
	Actions []actionDoc `yaml:"actions"`
}

// actionDoc leaves optional fields nil so unset ones take the defaults of
// a new action.
type actionDoc struct {
	ID                 string              `yaml:"id"`
	DeviceID           string              `yaml:"device_id"`
	Channel            *int                `yaml:"channel"`
	Invert             *bool               `yaml:"invert"`
	OutputKind         *OutputKind         `yaml:"output_kind"`
	ButtonType         *ButtonType         `yaml:"button_type"`
	AxisCharacteristic *AxisCharacteristic `yaml:"axis_characteristic"`
	MaxOutputPercent   *int                `yaml:"max_output_percent"`
	DeadZonePercent    *int                `yaml:"dead_zone_percent"`
	MaxServoAngle      *int                `yaml:"max_servo_angle"`
}

// LoadYAML parses a creation document, fills generated IDs and action
// defaults, and validates the result. Curve and button mode names are
// checked against t when it is non-nil. Unknown keys are rejected.
//
// Example:
//
//	name: Crawler
//	profiles:
//	  - name: Drive
//	    events:
//	      - type: axis
//	        code: Y
//	        actions:
//	          - device_id: 3f0c...
//	            channel: 1
//	            dead_zone_percent: 10
func LoadYAML(data []byte, t *Transform) (*Creation, error) {
	var doc creationDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidCreation)
		}
		return nil, fmt.Errorf("%w: parsing document: %w", ErrInvalidCreation, err)
	}

	c := doc.toCreation()
	if err := ValidateCreation(c, t); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *creationDoc) toCreation() *Creation {
	c := &Creation{ID: orNewID(d.ID), Name: d.Name}
	for _, pd := range d.Profiles {
		p := Profile{ID: orNewID(pd.ID), Name: pd.Name}
		for _, ed := range pd.Events {
			e := Event{ID: orNewID(ed.ID), Type: ed.Type, Code: ed.Code}
			for _, ad := range ed.Actions {
				e.Actions = append(e.Actions, *ad.toAction())
			}
			p.Events = append(p.Events, e)
		}
		c.Profiles = append(c.Profiles, p)
	}
	return c
}

func (d *actionDoc) toAction() *Action {
	in := DefaultActionInput(d.DeviceID)
	in.ActionID = orNewID(d.ID)
	if d.Channel != nil {
		in.Channel = *d.Channel
	}
	if d.Invert != nil {
		in.Invert = *d.Invert
	}
	if d.OutputKind != nil {
		in.OutputKind = *d.OutputKind
	}
	if d.ButtonType != nil {
		in.ButtonType = *d.ButtonType
	}
	if d.AxisCharacteristic != nil {
		in.AxisCharacteristic = *d.AxisCharacteristic
	}
	if d.MaxOutputPercent != nil {
		in.MaxOutputPercent = *d.MaxOutputPercent
	}
	if d.DeadZonePercent != nil {
		in.DeadZonePercent = *d.DeadZonePercent
	}
	if d.MaxServoAngle != nil {
		in.MaxServoAngle = *d.MaxServoAngle
	}
	return in.toAction()
}

func orNewID(id string) string {
	if id == "" {
		return GenerateID()
	}
	return id
}
