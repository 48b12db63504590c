package bedrock

import (
	"errors"

	"github.com/aws/smithy-go"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/llm"
)

const provider = "bedrock"

// classify tags a Bedrock runtime failure with its llm error kind.
func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return llm.Wrap(provider, kindFromCode(apiErr.ErrorCode()), err)
	}
	return llm.Wrap(provider, llm.KindFromTransport(err), err)
}

func kindFromCode(code string) error {
	switch code {
	case "ThrottlingException", "ServiceQuotaExceededException", "TooManyRequestsException":
		return llm.ErrQuotaExceeded
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException", "InvalidSignatureException":
		return llm.ErrAuth
	case "ResourceNotFoundException":
		return llm.ErrModelNotFound
	case "ModelTimeoutException":
		return llm.ErrTimeout
	case "ModelNotReadyException", "ServiceUnavailableException", "InternalServerException", "ModelErrorException":
		return llm.ErrUnavailable
	default:
		return nil
	}
}
