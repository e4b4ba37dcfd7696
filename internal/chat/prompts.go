package chat

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/askfloyd/orchestrator/internal/config"
)

// Marker that makes a caller-supplied prompt template extend the default
// instead of replacing it.
const injectionMarker = ">>>"

const defaultPersonaPrompt = `You are an assistant that helps the customers of DNB bank with their questions about insurance, your name is Floyd. Be brief in your answers. Only answer questions about DNB insurance.
Answer ONLY with the facts listed in the list of sources below. If there isn't enough information below, say you don't know. Do not generate answers that don't use the sources below. If asking a clarifying question to the user would help, ask the question.
For tabular information return it as an html table. Do not return markdown format.
Each source has a name followed by colon and the actual information, always include the source name for each fact you use in the response. Use square brackets to reference the source, e.g. [info1.txt]. Don't combine sources, list each source separately, e.g. [info1.txt][info2.pdf].
Make sure to be polite and if it is a question you cannot answer, guide the customer to a branch office or https://www.dnb.no/en/insurance/house-insurance.
{follow_up_questions_prompt}
{injected_prompt}
Sources:
{sources}
`

const defaultFollowupPrompt = `Generate three very brief follow-up questions that the user would likely ask next about their insurance.
Use double angle brackets to reference the questions, e.g. <<Are there exclusions for prescriptions?>>.
Try not to repeat questions that have already been asked.
Only generate questions and do not generate any text before or after the questions.`

const defaultRewritePrompt = `Below is a history of the conversation so far, and a new question asked by the user that needs to be answered by searching in a knowledge base about insurance.
Generate a search query based on the conversation and the new question.
Do not include cited source filenames and document names e.g info.txt or doc.pdf in the search query terms.
Do not include any text inside [] or <<>> in the search query terms.
If the question is not in English, translate the question to English before generating the search query.

Question:
Does my travel insurance cover lost luggage [info2.pdf]?

Search query:
travel insurance lost luggage coverage

Question:
Hva dekker husforsikringen?

Search query:
house insurance coverage

Chat History:
{chat_history}

Question:
{question}

Search query:
`

const defaultAskPrompt = `You are an intelligent assistant named Floyd, like the boxer, helping DNB Bank ASA customers with their questions about insurance.
Use 'you' to refer to the individual asking the questions even if they ask with 'I'.
Answer the following question using only the data provided in the sources below.
For tabular information return it as an html table. Do not return markdown format.
Each source has a name followed by colon and the actual information, always include the source name for each fact you use in the response.
If you cannot answer using the sources below, say you don't know, and tell them to reach out to customer support.

###
Question: 'Does my treatment medical insurance cover a CT scan in Denmark?'

Sources:
info1.txt: The insurance covers diagnostic imaging within 10 working days, for example MRI and CT scans
info2.pdf: The insurance applies to treatment in Norway, Sweden and Denmark (Scandinavia). If no expertise is available in Scandinavia, referrals can be made to other private treatment institutions in Europe with whom the company has an agreement.
info3.pdf: The insurance covers medical helpline.
info4.pdf: The insurance does not cover treatment for illnesses, injuries, or ailments that occurred prior to the insurance's approval.

Answer: The insurance covers diagnostic imaging within 10 working days, such as MRI and CT scans [info1.txt]. It applies to treatment in Scandinavia, including Denmark [info2.pdf]. However, it does not cover treatment for illnesses, injuries, or ailments that occurred before the insurance's approval [info4.pdf].
###

Question: '{q}'?

Sources:
{retrieved}

Answer:
`

// RenderTemplate substitutes {name} slots in tmpl. Unknown slots are left
// intact so a half-filled template is visible in diagnostics rather than
// silently blanked.
func RenderTemplate(tmpl string, slots map[string]string) string {
	out := tmpl
	for name, value := range slots {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}

// BuildSynthesisPrompt renders the system prompt for answer synthesis.
// An override starting with the injection marker extends the default
// template; any other non-empty override replaces it wholesale.
func (p *PromptLibrary) BuildSynthesisPrompt(sources string, followup bool, override string) string {
	followupPrompt := ""
	if followup {
		followupPrompt = p.Followup()
	}

	tmpl := p.Persona()
	injected := ""
	switch {
	case override == "":
	case strings.HasPrefix(override, injectionMarker):
		injected = strings.TrimPrefix(override, injectionMarker) + "\n"
	default:
		tmpl = override
	}

	return RenderTemplate(tmpl, map[string]string{
		"sources":                    sources,
		"follow_up_questions_prompt": followupPrompt,
		"injected_prompt":            injected,
	})
}

// PromptLibrary serves prompt templates with compiled-in defaults and
// optional hot-reload from a watched YAML file.
type PromptLibrary struct {
	mu       sync.RWMutex
	persona  string
	followup string
	rewrite  string
	ask      string
	logger   *zap.Logger
}

// NewPromptLibrary returns a library holding the default templates.
func NewPromptLibrary(logger *zap.Logger) *PromptLibrary {
	return &PromptLibrary{
		persona:  defaultPersonaPrompt,
		followup: defaultFollowupPrompt,
		rewrite:  defaultRewritePrompt,
		ask:      defaultAskPrompt,
		logger:   logger,
	}
}

const promptsFile = "prompts.yaml"

// Subscribe loads templates from the manager's prompts file and re-applies
// them whenever the file changes.
func (p *PromptLibrary) Subscribe(mgr *config.Manager) {
	if cfg, ok := mgr.Get(promptsFile); ok {
		p.apply(cfg)
	}
	mgr.RegisterHandler(promptsFile, func(event config.ChangeEvent) error {
		if event.Action == "delete" {
			return nil
		}
		p.apply(event.Config)
		return nil
	})
}

func (p *PromptLibrary) apply(cfg map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := cfg["persona"].(string); ok && v != "" {
		p.persona = v
	}
	if v, ok := cfg["follow_up"].(string); ok && v != "" {
		p.followup = v
	}
	if v, ok := cfg["rewrite"].(string); ok && v != "" {
		p.rewrite = v
	}
	if v, ok := cfg["ask"].(string); ok && v != "" {
		p.ask = v
	}
	p.logger.Info("Prompt templates reloaded")
}

func (p *PromptLibrary) Persona() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.persona
}

func (p *PromptLibrary) Followup() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.followup
}

func (p *PromptLibrary) Rewrite() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rewrite
}

func (p *PromptLibrary) Ask() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ask
}
