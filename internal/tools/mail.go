package tools

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

type mailOperation string

const (
	mailSend         mailOperation = "send"
	mailSendTemplate mailOperation = "send_template"
	mailVerify       mailOperation = "verify"
	mailStatus       mailOperation = "status"
)

func parseMailOperation(s string) (mailOperation, bool) {
	switch strings.ToLower(s) {
	case "send", "mail", "email":
		return mailSend, true
	case "template", "send_template", "sendtemplate":
		return mailSendTemplate, true
	case "verify", "validate":
		return mailVerify, true
	case "status", "query", "check":
		return mailStatus, true
	default:
		return "", false
	}
}

func recipientList(v value.Value) []string {
	switch v.Kind() {
	case value.KindString:
		return []string{v.AsString()}
	case value.KindArray:
		out := make([]string, 0, len(v.AsArray()))
		for _, item := range v.AsArray() {
			if item.Kind() == value.KindString {
				out = append(out, item.AsString())
			}
		}
		return out
	default:
		return nil
	}
}

func stringsToValues(ss []string) value.Value {
	out := make([]value.Value, len(ss))
	for i, s := range ss {
		out[i] = value.String(s)
	}
	return value.Array(out)
}

func (r *ManagedToolRegistry) executeMail(ctx context.Context, u ParsedURI, args value.Value, tc flow.ToolContext) (value.Value, error) {
	svc, err := r.requireToolService(ctx, tc.TenantID, u.ServiceName)
	if err != nil {
		return value.Null, err
	}
	provider := stringConfig(svc.Config, "provider")
	fromAddress := stringConfig(svc.Config, "from_address")
	fromName := stringConfig(svc.Config, "from_name")

	op, ok := parseMailOperation(u.Endpoint)
	if !ok {
		op = mailSend
	}

	switch op {
	case mailSend:
		to := argOr(args, "to", value.Null)
		if to.Kind() == value.KindNull {
			return value.Null, missingArg("to")
		}
		recipients := recipientList(to)
		if recipients == nil {
			return value.Null, flowerrInvalidArg("'to' must be a string or array of strings")
		}
		subject := stringArgOr(args, "subject", "")
		if subject == "" {
			return value.Null, missingArg("subject")
		}
		body := argOr(args, "body", value.Null)
		html := argOr(args, "html", value.Null)
		if body.Kind() == value.KindNull && html.Kind() == value.KindNull {
			return value.Null, flowerrInvalidArg("missing 'body' or 'html' parameter")
		}
		cc := recipientList(argOr(args, "cc", value.Null))
		bcc := recipientList(argOr(args, "bcc", value.Null))

		return value.Mapping(map[string]value.Value{
			"success":   value.Bool(true),
			"messageId": value.String(uuid.NewString()),
			"provider":  value.String(provider),
			"from": value.Mapping(map[string]value.Value{
				"address": value.String(fromAddress),
				"name":    value.String(fromName),
			}),
			"to":      stringsToValues(recipients),
			"cc":      stringsToValues(cc),
			"bcc":     stringsToValues(bcc),
			"subject": value.String(subject),
			"hasBody": value.Bool(body.Kind() != value.KindNull),
			"hasHtml": value.Bool(html.Kind() != value.KindNull),
			"timestamp": value.String(time.Now().UTC().Format(time.RFC3339)),
			"status":    value.String("queued"),
		}), nil
	case mailSendTemplate:
		to := argOr(args, "to", value.Null)
		if to.Kind() == value.KindNull {
			return value.Null, missingArg("to")
		}
		recipients := recipientList(to)
		if recipients == nil {
			return value.Null, flowerrInvalidArg("'to' must be a string or array of strings")
		}
		templateID := stringArgOr(args, "templateId", stringArgOr(args, "template", ""))
		if templateID == "" {
			return value.Null, missingArg("templateId")
		}
		templateData := argOr(args, "data", argOr(args, "variables", value.Null))

		return value.Mapping(map[string]value.Value{
			"success":      value.Bool(true),
			"messageId":    value.String(uuid.NewString()),
			"provider":     value.String(provider),
			"from":         value.String(fromAddress),
			"to":           stringsToValues(recipients),
			"templateId":   value.String(templateID),
			"templateData": templateData,
			"timestamp":    value.String(time.Now().UTC().Format(time.RFC3339)),
			"status":       value.String("queued"),
		}), nil
	case mailVerify:
		email := stringArgOr(args, "email", stringArgOr(args, "address", ""))
		if email == "" {
			return value.Null, missingArg("email")
		}
		isValid := strings.Contains(email, "@") && strings.Contains(email, ".")
		reason := "invalid_format"
		if isValid {
			reason = "valid_format"
		}
		return value.Mapping(map[string]value.Value{
			"success":   value.Bool(true),
			"email":     value.String(email),
			"valid":     value.Bool(isValid),
			"reason":    value.String(reason),
			"timestamp": value.String(time.Now().UTC().Format(time.RFC3339)),
		}), nil
	case mailStatus:
		messageID := stringArgOr(args, "messageId", stringArgOr(args, "id", ""))
		if messageID == "" {
			return value.Null, missingArg("messageId")
		}
		return value.Mapping(map[string]value.Value{
			"success":   value.Bool(true),
			"messageId": value.String(messageID),
			"status":    value.String("delivered"),
			"timestamp": value.String(time.Now().UTC().Format(time.RFC3339)),
		}), nil
	default:
		return value.Null, missingArg("operation")
	}
}
