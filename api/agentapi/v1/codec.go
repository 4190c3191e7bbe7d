package agentapiv1

import (
	"encoding/json"
	"errors"

	"github.com/sierrasoftworks/humane-errors-go"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ToStruct converts v into a Struct through its JSON encoding. v must encode as a JSON object.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	msg := &structpb.Struct{}
	if err := msg.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return msg, nil
}

// StructJSON returns the JSON document held by msg.
func StructJSON(msg *structpb.Struct) ([]byte, error) {
	if msg == nil {
		msg = &structpb.Struct{}
	}
	return msg.MarshalJSON()
}

// FromStruct decodes msg into v through its JSON encoding.
func FromStruct(msg *structpb.Struct, v any) error {
	raw, err := StructJSON(msg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// StatusError converts err into a gRPC status. Humane advice travels as
// StringValue details.
func StatusError(code codes.Code, err error) error {
	st := status.New(code, err.Error())

	var advised interface{ Advice() []string }
	if errors.As(err, &advised) {
		for _, advice := range advised.Advice() {
			if withDetail, detailErr := st.WithDetails(wrapperspb.String(advice)); detailErr == nil {
				st = withDetail
			}
		}
	}
	return st.Err()
}

// Advice extracts the advice attached by StatusError.
func Advice(err error) []string {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}

	var advice []string
	for _, detail := range st.Details() {
		if s, ok := detail.(*wrapperspb.StringValue); ok {
			advice = append(advice, s.GetValue())
		}
	}
	return advice
}

// FromStatusError turns a gRPC error returned by the agent back into a humane error.
func FromStatusError(err error) humane.Error {
	st, ok := status.FromError(err)
	if !ok {
		return humane.Wrap(err, "agent call failed")
	}
	return humane.New(st.Message(), Advice(err)...)
}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}
