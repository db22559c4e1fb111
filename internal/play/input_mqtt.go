package play

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/nerrad567/brickplay-core/internal/creation"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/mqtt"
)

// Subscriber is the part of the MQTT client an MQTTInputSource needs.
// *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTInputSource reads controller events published by controller
// gateways on brickplay/input/{controller_id}.
//
// Payload:
//
//	{"type": "axis", "code": "X", "value": -0.42}
//	{"type": "button", "code": "ButtonA", "value": 1}
type MQTTInputSource struct {
	client Subscriber
	topic  string
	qos    byte
	logger Logger
}

// NewMQTTInputSource creates a source for one controller, or for every
// controller when controllerID is empty.
func NewMQTTInputSource(client Subscriber, controllerID string, qos byte, logger Logger) *MQTTInputSource {
	topics := mqtt.Topics{}
	topic := topics.AllControllerInputs()
	if controllerID != "" {
		topic = topics.ControllerInput(controllerID)
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTInputSource{client: client, topic: topic, qos: qos, logger: logger}
}

// Topic returns the subscribed topic or pattern.
func (s *MQTTInputSource) Topic() string { return s.topic }

// Subscribe delivers decoded events to handler until unsubscribe is
// called. Undecodable payloads are logged and skipped.
func (s *MQTTInputSource) Subscribe(handler func(InputEvent)) (func() error, error) {
	topics := mqtt.Topics{}
	err := s.client.Subscribe(s.topic, s.qos, func(topic string, payload []byte) error {
		ev, err := DecodeInputEvent(payload)
		if err != nil {
			return fmt.Errorf("input on %s: %w", topic, err)
		}
		if id, ok := topics.ParseControllerInput(topic); ok {
			ev.ControllerID = id
		}
		handler(ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", s.topic, err)
	}
	s.logger.Debug("input subscribed", "topic", s.topic)

	var once sync.Once
	return func() error {
		var uerr error
		once.Do(func() {
			uerr = s.client.Unsubscribe(s.topic)
			s.logger.Debug("input unsubscribed", "topic", s.topic)
		})
		return uerr
	}, nil
}

// DecodeInputEvent parses and checks a controller event payload.
func DecodeInputEvent(payload []byte) (InputEvent, error) {
	var ev InputEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return InputEvent{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if ev.Type != creation.EventButton && ev.Type != creation.EventAxis {
		return InputEvent{}, fmt.Errorf("%w: type %q must be button or axis", ErrInvalidInput, ev.Type)
	}
	if strings.TrimSpace(ev.Code) == "" {
		return InputEvent{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if math.IsNaN(ev.Value) || math.IsInf(ev.Value, 0) {
		return InputEvent{}, fmt.Errorf("%w: value must be finite", ErrInvalidInput)
	}
	return ev, nil
}
