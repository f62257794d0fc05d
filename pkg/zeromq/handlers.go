package zeromq

import (
	"encoding/json"
	"fmt"
	"time"

	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
)

// Provider returns the payload of a response.
type Provider func() (interface{}, error)

// RequestHandler answers one request type with the payload of a Provider
type RequestHandler struct {
	requestType  string
	responseType string
	provide      Provider
	logger       customlog.Logger
}

// NewRequestHandler creates a handler answering requestType with responseType
func NewRequestHandler(requestType, responseType string, provide Provider, logger customlog.Logger) *RequestHandler {
	return &RequestHandler{
		requestType:  requestType,
		responseType: responseType,
		provide:      provide,
		logger:       logger,
	}
}

// HandleMessage processes a request and returns the serialized response
func (h *RequestHandler) HandleMessage(data []byte) ([]byte, error) {
	var msg ZeroMQMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	if msg.Type != h.requestType {
		return nil, fmt.Errorf("unexpected message type: %s", msg.Type)
	}

	h.logger.Debugf("Processing %s", msg.Type)

	payload, err := h.provide()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", h.responseType, err)
	}

	response := ZeroMQMessage{
		Type:      h.responseType,
		Timestamp: float64(time.Now().Unix()),
		Data:      payload,
	}

	responseData, err := json.Marshal(response)
	if err != nil {
		h.logger.Errorf("Error serializing response: %v", err)
		return nil, fmt.Errorf("failed to serialize response: %w", err)
	}

	h.logger.Debugf("Sending %s (%d bytes)", h.responseType, len(responseData))
	return responseData, nil
}

// Providers supplies the payloads of the built-in requests. A nil field
// leaves that request unregistered.
type Providers struct {
	ModelInfo Provider
	State     Provider
	Config    Provider
}

// RegisterBridgeHandlers registers the MODEL_INFO, STATE and CONFIG request
// handlers on the service
func RegisterBridgeHandlers(service *ZeroMQService, providers Providers, logger customlog.Logger) {
	register(service.dispatcher, providers, logger)
}

func register(d *MessageDispatcher, providers Providers, logger customlog.Logger) {
	if providers.ModelInfo != nil {
		d.RegisterHandler(MsgTypeModelInfoRequest,
			NewRequestHandler(MsgTypeModelInfoRequest, MsgTypeModelInfoResponse, providers.ModelInfo, logger))
	}
	if providers.State != nil {
		d.RegisterHandler(MsgTypeStateRequest,
			NewRequestHandler(MsgTypeStateRequest, MsgTypeStateResponse, providers.State, logger))
	}
	if providers.Config != nil {
		d.RegisterHandler(MsgTypeConfigRequest,
			NewRequestHandler(MsgTypeConfigRequest, MsgTypeConfigResponse, providers.Config, logger))
	}
}
