// Package responses is the synchronous alternative to the run-driven
// conversation path: one Responses API call per turn, with continuity
// carried by the previous response id instead of a server-side thread.
package responses

import (
	"context"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	oresponses "github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/stampchat/stampchat/pkg/core"
)

const defaultModel = "gpt-4o"

// Client implements core.ResponseProvider on the official SDK.
type Client struct {
	client openai.Client
	model  string
}

// New creates a client for the given API key. model may be empty.
func New(apiKey, model string) *Client {
	return newClient(model, option.WithAPIKey(apiKey))
}

// NewWithBaseURL creates a client against a custom endpoint, used by tests
// and proxy setups.
func NewWithBaseURL(apiKey, baseURL, model string) *Client {
	return newClient(model,
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
}

func newClient(model string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// CreateResponseWithTools runs one synchronous turn. The returned response
// id is the conversation ref the caller passes back as PreviousResponseID
// on the next turn.
func (c *Client) CreateResponseWithTools(ctx context.Context, input string, opts core.SingleShotOptions) (*core.SingleShotResponse, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	params := oresponses.ResponseNewParams{
		Model: shared.ResponsesModel(model),
		Input: buildInput(input, opts),
	}
	if opts.PreviousResponseID != "" {
		params.PreviousResponseID = openai.String(opts.PreviousResponseID)
	}
	if opts.Instructions != "" {
		params.Instructions = openai.String(opts.Instructions)
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, core.NewUpstreamTimeoutError("response call timed out")
		}
		return nil, core.NewAPIError("response call failed: " + err.Error())
	}

	return &core.SingleShotResponse{
		ID:         resp.ID,
		OutputText: extractOutputText(resp),
	}, nil
}

// buildInput replays client-supplied history as an input item list when
// there is no previous response id to carry the conversation.
func buildInput(input string, opts core.SingleShotOptions) oresponses.ResponseNewParamsInputUnion {
	if opts.PreviousResponseID != "" || len(opts.History) == 0 {
		return oresponses.ResponseNewParamsInputUnion{
			OfString: openai.String(input),
		}
	}

	items := make(oresponses.ResponseInputParam, 0, len(opts.History)+1)
	for _, turn := range opts.History {
		role := turn.Role
		if role != "assistant" {
			role = "user"
		}
		content := oresponses.ResponseInputMessageContentListParam{
			oresponses.ResponseInputContentParamOfInputText(turn.Content),
		}
		items = append(items, oresponses.ResponseInputItemParamOfMessage(content, oresponses.EasyInputMessageRole(role)))
	}
	items = append(items, oresponses.ResponseInputItemParamOfMessage(
		oresponses.ResponseInputMessageContentListParam{
			oresponses.ResponseInputContentParamOfInputText(input),
		},
		oresponses.EasyInputMessageRole("user"),
	))
	return oresponses.ResponseNewParamsInputUnion{OfInputItemList: items}
}

// LookupImage runs one vision turn: an instruction prompt plus an image
// carried as a data URL. Stateless, no conversation continuity.
func (c *Client) LookupImage(ctx context.Context, prompt, imageDataURL string) (string, error) {
	content := oresponses.ResponseInputMessageContentListParam{
		oresponses.ResponseInputContentParamOfInputText(prompt),
		oresponses.ResponseInputContentUnionParam{
			OfInputImage: &oresponses.ResponseInputImageParam{
				ImageURL: openai.String(imageDataURL),
			},
		},
	}
	params := oresponses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: oresponses.ResponseNewParamsInputUnion{
			OfInputItemList: oresponses.ResponseInputParam{
				oresponses.ResponseInputItemParamOfMessage(content, oresponses.EasyInputMessageRole("user")),
			},
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", core.NewUpstreamTimeoutError("image lookup timed out")
		}
		return "", core.NewAPIError("image lookup failed: " + err.Error())
	}
	return extractOutputText(resp), nil
}

// extractOutputText joins the output_text parts of all message items.
func extractOutputText(resp *oresponses.Response) string {
	var sb strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		msg := item.AsMessage()
		for _, part := range msg.Content {
			if part.Type != "output_text" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(strings.TrimSpace(part.Text))
		}
	}
	return sb.String()
}
