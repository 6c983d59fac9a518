package event

import (
	"reflect"

	"github.com/parley-ai/parley/pkg/types"
)

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	Info *types.Session `json:"info" validate:"required"`
}

// SessionUpdatedData is the data for session.updated events.
type SessionUpdatedData struct {
	Info *types.Session `json:"info" validate:"required"`
}

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	SessionID string `json:"sessionID" validate:"required"`
}

// MessageAddedData is the data for message.added events.
type MessageAddedData struct {
	SessionID string `json:"sessionID" validate:"required"`
	MessageID string `json:"messageID" validate:"required"`
	Role      string `json:"role" validate:"required,oneof=user assistant"`
}

// MessagePartsUpdatedData is the data for message.parts.updated events.
type MessagePartsUpdatedData struct {
	SessionID string       `json:"sessionID" validate:"required"`
	MessageID string       `json:"messageID" validate:"required"`
	Parts     []types.Part `json:"parts"`
}

// MessageStatusUpdatedData is the data for message.status.updated events.
type MessageStatusUpdatedData struct {
	SessionID string `json:"sessionID" validate:"required"`
	MessageID string `json:"messageID" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=active completed error abort"`
}

// MessageUsageUpdatedData is the data for message.usage.updated events.
type MessageUsageUpdatedData struct {
	SessionID string      `json:"sessionID" validate:"required"`
	MessageID string      `json:"messageID" validate:"required"`
	Usage     types.Usage `json:"usage"`
}

// TodosReplacedData is the data for todo.replaced events.
type TodosReplacedData struct {
	SessionID string       `json:"sessionID" validate:"required"`
	Todos     []types.Todo `json:"todos"`
}

// ConfigUpdatedData is the data for the coarse config.updated event.
type ConfigUpdatedData struct {
	Config *types.Config `json:"config" validate:"required"`
}

// ConfigModelUpdatedData is the data for config.model.updated events.
type ConfigModelUpdatedData struct {
	Model string `json:"model" validate:"required"`
}

// ConfigLogLevelUpdatedData is the data for config.loglevel.updated events.
type ConfigLogLevelUpdatedData struct {
	Level string `json:"level" validate:"required"`
}

// payloadShapes maps each event type to its required payload type.
var payloadShapes = map[EventType]reflect.Type{
	SessionCreated:        reflect.TypeOf(SessionCreatedData{}),
	SessionUpdated:        reflect.TypeOf(SessionUpdatedData{}),
	SessionDeleted:        reflect.TypeOf(SessionDeletedData{}),
	MessageAdded:          reflect.TypeOf(MessageAddedData{}),
	MessagePartsUpdated:   reflect.TypeOf(MessagePartsUpdatedData{}),
	MessageStatusUpdated:  reflect.TypeOf(MessageStatusUpdatedData{}),
	MessageUsageUpdated:   reflect.TypeOf(MessageUsageUpdatedData{}),
	TodosReplaced:         reflect.TypeOf(TodosReplacedData{}),
	ConfigUpdated:         reflect.TypeOf(ConfigUpdatedData{}),
	ConfigModelUpdated:    reflect.TypeOf(ConfigModelUpdatedData{}),
	ConfigLogLevelUpdated: reflect.TypeOf(ConfigLogLevelUpdatedData{}),
}
