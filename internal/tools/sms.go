package tools

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

type smsOperation string

const (
	smsSend         smsOperation = "send"
	smsSendTemplate smsOperation = "send_template"
	smsBatchSend    smsOperation = "batch_send"
	smsStatus       smsOperation = "status"
	smsBalance      smsOperation = "balance"
)

func parseSmsOperation(s string) (smsOperation, bool) {
	switch strings.ToLower(s) {
	case "send", "sms":
		return smsSend, true
	case "template", "send_template", "sendtemplate":
		return smsSendTemplate, true
	case "batch", "batch_send", "batchsend":
		return smsBatchSend, true
	case "status", "query", "check":
		return smsStatus, true
	case "balance", "quota":
		return smsBalance, true
	default:
		return "", false
	}
}

// normalizePhone prefixes a bare phone number with the region's country code,
// grounded on sms.rs's normalize_phone.
func normalizePhone(phone, region string) string {
	phone = strings.TrimSpace(phone)
	if region == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	var code string
	switch strings.ToLower(region) {
	case "cn", "china":
		code = "+86"
	case "us", "usa":
		code = "+1"
	case "uk":
		code = "+44"
	case "hk":
		code = "+852"
	case "tw":
		code = "+886"
	}
	if code == "" {
		return phone
	}
	return code + phone
}

func (r *ManagedToolRegistry) executeSMS(ctx context.Context, u ParsedURI, args value.Value, tc flow.ToolContext) (value.Value, error) {
	svc, err := r.requireToolService(ctx, tc.TenantID, u.ServiceName)
	if err != nil {
		return value.Null, err
	}
	provider := stringConfig(svc.Config, "provider")
	signName := stringConfig(svc.Config, "sign_name")
	region := stringConfig(svc.Config, "region")

	op, ok := parseSmsOperation(u.Endpoint)
	if !ok {
		op = smsSend
	}

	switch op {
	case smsSend:
		phone := stringArgOr(args, "phone", stringArgOr(args, "to", stringArgOr(args, "mobile", "")))
		if phone == "" {
			return value.Null, missingArg("phone")
		}
		content := stringArgOr(args, "content", stringArgOr(args, "message", stringArgOr(args, "text", "")))
		if content == "" {
			return value.Null, missingArg("content")
		}
		return value.Mapping(map[string]value.Value{
			"success":   value.Bool(true),
			"messageId": value.String(uuid.NewString()),
			"provider":  value.String(provider),
			"phone":     value.String(normalizePhone(phone, region)),
			"signName":  value.String(signName),
			"content":   value.String(content),
			"segments":  value.Int(int64(len(content)/70) + 1),
			"timestamp": value.String(time.Now().UTC().Format(time.RFC3339)),
			"status":    value.String("submitted"),
		}), nil
	case smsSendTemplate:
		phone := stringArgOr(args, "phone", stringArgOr(args, "to", stringArgOr(args, "mobile", "")))
		if phone == "" {
			return value.Null, missingArg("phone")
		}
		templateCode := stringArgOr(args, "templateCode", stringArgOr(args, "template", stringArgOr(args, "templateId", "")))
		if templateCode == "" {
			return value.Null, missingArg("templateCode")
		}
		templateParam := argOr(args, "templateParam", argOr(args, "params", argOr(args, "data", value.Null)))
		return value.Mapping(map[string]value.Value{
			"success":       value.Bool(true),
			"messageId":     value.String(uuid.NewString()),
			"provider":      value.String(provider),
			"phone":         value.String(normalizePhone(phone, region)),
			"signName":      value.String(signName),
			"templateCode":  value.String(templateCode),
			"templateParam": templateParam,
			"timestamp":     value.String(time.Now().UTC().Format(time.RFC3339)),
			"status":        value.String("submitted"),
		}), nil
	case smsBatchSend:
		phonesArg := argOr(args, "phones", argOr(args, "to", argOr(args, "mobiles", value.Null)))
		var phones []string
		switch phonesArg.Kind() {
		case value.KindArray:
			for _, p := range phonesArg.AsArray() {
				if p.Kind() == value.KindString {
					phones = append(phones, normalizePhone(p.AsString(), region))
				}
			}
		case value.KindString:
			for _, p := range strings.Split(phonesArg.AsString(), ",") {
				phones = append(phones, normalizePhone(strings.TrimSpace(p), region))
			}
		default:
			return value.Null, missingArg("phones")
		}
		if len(phones) == 0 {
			return value.Null, flowerrInvalidArg("no valid phone numbers provided")
		}
		templateCode := stringArgOr(args, "templateCode", stringArgOr(args, "template", ""))
		content := stringArgOr(args, "content", stringArgOr(args, "message", ""))
		if templateCode == "" && content == "" {
			return value.Null, flowerrInvalidArg("missing 'templateCode' or 'content' parameter")
		}
		return value.Mapping(map[string]value.Value{
			"success":      value.Bool(true),
			"batchId":      value.String(uuid.NewString()),
			"provider":     value.String(provider),
			"phones":       stringsToValues(phones),
			"total":        value.Int(int64(len(phones))),
			"signName":     value.String(signName),
			"templateCode": value.String(templateCode),
			"content":      value.String(content),
			"timestamp":    value.String(time.Now().UTC().Format(time.RFC3339)),
			"status":       value.String("submitted"),
		}), nil
	case smsStatus:
		messageID := stringArgOr(args, "messageId", stringArgOr(args, "id", stringArgOr(args, "bizId", "")))
		if messageID == "" {
			return value.Null, missingArg("messageId")
		}
		return value.Mapping(map[string]value.Value{
			"success":   value.Bool(true),
			"messageId": value.String(messageID),
			"status":    value.String("delivered"),
			"timestamp": value.String(time.Now().UTC().Format(time.RFC3339)),
		}), nil
	case smsBalance:
		return value.Mapping(map[string]value.Value{
			"success":  value.Bool(true),
			"provider": value.String(provider),
			"balance":  value.Int(0),
			"currency": value.String("CNY"),
		}), nil
	default:
		return value.Null, missingArg("operation")
	}
}
