package tools

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// mqOperation mirrors mq.rs's MqOperation.
type mqOperation string

const (
	mqSend        mqOperation = "send"
	mqReceive     mqOperation = "receive"
	mqSubscribe   mqOperation = "subscribe"
	mqUnsubscribe mqOperation = "unsubscribe"
	mqAck         mqOperation = "ack"
	mqNack        mqOperation = "nack"
	mqInfo        mqOperation = "info"
)

func parseMqOperation(s string) (mqOperation, bool) {
	switch strings.ToLower(s) {
	case "send", "publish", "push", "produce":
		return mqSend, true
	case "receive", "pull", "consume", "get":
		return mqReceive, true
	case "subscribe", "sub", "listen":
		return mqSubscribe, true
	case "unsubscribe", "unsub":
		return mqUnsubscribe, true
	case "ack", "acknowledge":
		return mqAck, true
	case "nack", "reject":
		return mqNack, true
	case "info", "stats", "status":
		return mqInfo, true
	default:
		return "", false
	}
}

// resolveMqOperation mirrors mq.rs's parse_path_with_args: an explicit
// `operation` arg treats the endpoint as exchange/routing-key; otherwise the
// first endpoint segment is tried as an operation name (topic/queue
// following), falling back to Send with the endpoint as exchange/routing-key.
func resolveMqOperation(endpoint string, args value.Value) (op mqOperation, topic, queue string) {
	first, rest, hasRest := SplitEndpoint(endpoint)

	if opArg := argOr(args, "operation", value.Null); opArg.Kind() == value.KindString {
		if parsed, ok := parseMqOperation(opArg.AsString()); ok {
			return parsed, first, rest
		}
	}

	if parsed, ok := parseMqOperation(first); ok {
		t, q, _ := SplitEndpoint(rest)
		if !hasRest {
			return parsed, "", ""
		}
		return parsed, t, q
	}
	return mqSend, first, rest
}

func (r *ManagedToolRegistry) executeMQ(ctx context.Context, u ParsedURI, args value.Value, tc flow.ToolContext) (value.Value, error) {
	svc, err := r.requireToolService(ctx, tc.TenantID, u.ServiceName)
	if err != nil {
		return value.Null, err
	}
	broker := stringConfig(svc.Config, "broker")
	serialization := stringConfig(svc.Config, "serialization")
	defaultQueue := stringConfig(svc.Config, "default_queue")

	op, topic, queue := resolveMqOperation(u.Endpoint, args)
	if topic == "" {
		topic = stringArgOr(args, "topic", defaultQueue)
	}

	switch op {
	case mqSend:
		msg := argOr(args, "message", argOr(args, "data", argOr(args, "body", value.Null)))
		if msg.Kind() == value.KindNull {
			return value.Null, missingArg("message")
		}
		if topic == "" {
			return value.Null, missingArg("topic/queue")
		}
		return value.Mapping(map[string]value.Value{
			"success":       value.Bool(true),
			"messageId":     value.String(uuid.NewString()),
			"topic":         value.String(topic),
			"queue":         value.String(queue),
			"broker":        value.String(broker),
			"serialization": value.String(serialization),
			"delay":         intArg(args, "delay"),
			"priority":      intArg(args, "priority"),
			"timestamp":     value.String(time.Now().UTC().Format(time.RFC3339)),
		}), nil
	case mqReceive:
		if topic == "" {
			return value.Null, missingArg("topic/queue")
		}
		timeout := intArgOr(args, "timeout", 5000)
		return value.Mapping(map[string]value.Value{
			"success": value.Bool(true),
			"topic":   value.String(topic),
			"queue":   value.String(queue),
			"messages": value.Array([]value.Value{
				value.Mapping(map[string]value.Value{
					"messageId":   value.String(uuid.NewString()),
					"body":        value.Mapping(map[string]value.Value{"sample": value.String("message data")}),
					"timestamp":   value.String(time.Now().UTC().Format(time.RFC3339)),
					"deliveryTag": value.Int(1),
				}),
			}),
			"count":   value.Int(1),
			"timeout": value.Int(timeout),
		}), nil
	case mqSubscribe:
		if topic == "" {
			return value.Null, missingArg("topic/queue")
		}
		return value.Mapping(map[string]value.Value{
			"success":        value.Bool(true),
			"subscriptionId": value.String(uuid.NewString()),
			"topic":          value.String(topic),
			"queue":          value.String(queue),
			"status":         value.String("active"),
			"createdAt":      value.String(time.Now().UTC().Format(time.RFC3339)),
		}), nil
	case mqUnsubscribe:
		return value.Mapping(map[string]value.Value{
			"success":        value.Bool(true),
			"subscriptionId": argOr(args, "subscriptionId", value.Null),
			"status":         value.String("cancelled"),
		}), nil
	case mqAck, mqNack:
		msgID := argOr(args, "messageId", argOr(args, "deliveryTag", value.Null))
		if msgID.Kind() == value.KindNull {
			return value.Null, missingArg("messageId")
		}
		return value.Mapping(map[string]value.Value{
			"success":       value.Bool(true),
			"messageId":     msgID,
			"acknowledged":  value.Bool(op == mqAck),
			"timestamp":     value.String(time.Now().UTC().Format(time.RFC3339)),
		}), nil
	case mqInfo:
		return value.Mapping(map[string]value.Value{
			"success": value.Bool(true),
			"broker":  value.String(broker),
			"topic":   value.String(topic),
			"queue":   value.String(queue),
		}), nil
	default:
		return value.Null, missingArg("operation")
	}
}

func intArg(args value.Value, key string) value.Value {
	return value.Int(intArgOr(args, key, 0))
}
