package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/hschub/hschub-backend/internal/platform/apierr"
	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/platform/openai"
	"github.com/hschub/hschub-backend/internal/repos"
)

const biologyRevampPrompt = `You are a Biology HSC question rewriter.

Your task is to revamp the given question to create ONE NEW UNIQUE question that tests the same concepts and remains consistent with the given question's difficulty, but uses a different scenario or different phrasing.

Question:
%s

Question topic(s):
%s

STRUCTURE RULES:
1) Keep the question in the same general format (e.g., multiple choice (a. b. c. d.), short answer, etc.).
2) Keep terminology and notation consistent with the subject area.
3) Avoid adding unrelated content or off-topic information.
4) Do NOT include marks, "Question X", diagrams, page furniture, or IDs.

LATEX RULES:
- Use plain text for Biology unless referring to chemical/molecular notation (e.g., ATP, DNA, \(H_2O\)).
- Do NOT use LaTeX environments such as \begin{align}, TikZ, or tables.
Return only the raw question text (no explanations or commentary).`

const mathRevampPrompt = `You are a HSC question rewriter that outputs questions in valid MathJax/KaTeX-safe LaTeX format.

Your task is to revamp the given question to create ONE NEW UNIQUE question that tests the same concepts and remains consistent with the given question's difficulty, but uses a different scenario or different phrasing.

Question:
%s

Question topic(s):
%s

STRUCTURE RULES:
1) Keep the question in the same general format (e.g., multiple choice (a. b. c. d.), short answer, etc.).
2) Keep terminology and notation consistent with the subject area.
3) Avoid adding unrelated content or off-topic information.
4) Do NOT include marks, "Question X", diagrams, page furniture, or IDs.

LATEX RULES:
- Use only MathJax/KaTeX-safe LaTeX syntax.
- Inline math: \( ... \)
- Display math: \[ ... \] or \begin{align*} ... \end{align*}
- Do not use \begin{enumerate}, \item, \tabular, \center, TikZ, or \boxed.
- Do not wrap LaTeX in triple backticks or prepend "latex".
- Return only the raw LaTeX content.
- Do not include explanations, reasoning, or extra commentary.`

const generateSystemPrompt = "You are a senior HSC Mathematics teacher who writes authentic HSC-style questions in LaTeX."

const mathGeneratePrompt = `You are given authentic HSC exemplar questions.
Your task is to write ONE NEW UNIQUE HSC-style question that looks and feels like these exemplars.

The topics are provided only to keep the mathematics relevant.
Do NOT use different technical terminology, or invent your own structure or style - stay as close as possible to the exemplars.
Randomise the difficulty of the questions you generate (not always very easy, make some quite hard).

Exemplar questions (pick a random one and use it as the main reference for style, structure, and phrasing):
%s

Target topics (for relevance only, secondary to style):
%s

Write EXACTLY ONE HSC-style math question.

STRUCTURE RULES:
1) Begin with ONE common stem (e.g., a function, a graph, a scenario).
2) If there are multiple tasks, split into (a), (b), (c) - but ONLY if they naturally follow from the stem.
   - If a single task is sufficient, write only one task (no unnecessary parts).
   - If multiple parts are used, each must depend on the stem and logically follow from the previous.
3) Do NOT introduce unrelated functions or new scenarios.
4) Do NOT include marks, "Question X", diagrams, page furniture, or IDs.

LATEX RULES:
- Use only MathJax/KaTeX-safe LaTeX:
  - Inline: \( ... \)
  - Display: \[ ... \] or \begin{align*}...\end{align*}
- Do NOT use \begin{enumerate}, \item, \tabular, \center, TikZ, or \boxed.
- Do NOT wrap in triple backticks or prepend "latex".
Return only the raw LaTeX content.`

const biologyGeneratePrompt = `You are given authentic HSC Biology exemplar questions.
Your task is to write ONE NEW UNIQUE HSC-style question that looks and feels like these exemplars.

The topics are provided only to keep the biology content relevant.
Do NOT use terminology or structures that differ from authentic HSC Biology exam style.
Questions must sound natural and realistic for NESA-style HSC exams, not textbook exercises.

Exemplar questions (pick a random one and use it as the main reference for style, structure, and phrasing):
%s

Target topics (for relevance only, secondary to style):
%s

Write EXACTLY ONE HSC-style Biology question.

STRUCTURE RULES:
1) Begin with ONE clear scenario, diagram description, experiment, or context.
2) Follow with one or more tasks labelled (a), (b), (c), only if necessary.
   - Each part must follow logically from the stem.
   - Avoid unnecessary multi-part structures if one question is sufficient.
3) Use natural scientific phrasing, focusing on explanation, analysis, or evaluation.
4) Align with HSC Biology command verbs such as: "explain", "analyse", "assess", "evaluate", "describe", "justify", or "outline".
5) Do NOT include marks, "Question X", diagrams, page furniture, or IDs.

CONTENT RULES:
- Keep all content scientifically accurate.
- Use realistic biological examples (e.g., pathogens, enzymes, DNA processes, immune response).
- Do NOT include fictitious data, irrelevant scenarios, or diagrams.
- Avoid numerical or mathematical style wording.

LATEX RULES:
- Use plain text for Biology unless referring to chemical/molecular notation (e.g., ATP, DNA, \(H_2O\)).
- Do NOT use LaTeX environments such as \begin{align}, TikZ, or tables.

Return only the raw question text (no explanations or commentary).`

type RevampResult struct {
	OriginalText          string   `json:"original_text"`
	Topics                []string `json:"topics"`
	RevampedQuestionLatex string   `json:"revamped_question_latex"`
}

type GenerateByTopicsRequest struct {
	Topics        []string `json:"topics"`
	ExemplarCount int      `json:"exemplar_count"`
	Temperature   float64  `json:"temperature"`
	Subject       string   `json:"subject"`
}

type GenerateByTopicsResult struct {
	Topics        []string `json:"topics"`
	ExemplarsUsed int      `json:"exemplars_used"`
	Latex         string   `json:"latex"`
	ExemplarIDs   []string `json:"exemplar_ids"`
}

type GenerationService interface {
	Revamp(ctx context.Context, subject, text string, topics []string) (*RevampResult, error)
	GenerateByTopics(ctx context.Context, req GenerateByTopicsRequest) (*GenerateByTopicsResult, error)
}

type generationService struct {
	log             *logger.Logger
	ai              openai.Client
	questions       repos.QuestionRepo
	topics          repos.TopicRepo
	classifications repos.ClassificationRepo
}

func NewGenerationService(
	ai openai.Client,
	questions repos.QuestionRepo,
	topics repos.TopicRepo,
	classifications repos.ClassificationRepo,
	log *logger.Logger,
) GenerationService {
	return &generationService{
		log:             log.With("service", "GenerationService"),
		ai:              ai,
		questions:       questions,
		topics:          topics,
		classifications: classifications,
	}
}

func (s *generationService) Revamp(ctx context.Context, subject, text string, topics []string) (*RevampResult, error) {
	if strings.TrimSpace(text) == "" || len(topics) == 0 {
		return nil, apierr.BadRequest("missing_fields", fmt.Errorf("original text or topics not found"))
	}

	template := mathRevampPrompt
	if strings.EqualFold(strings.TrimSpace(subject), "Biology") {
		template = biologyRevampPrompt
	}
	user := fmt.Sprintf(template, text, topicsLines(topics))

	temp := 0.7
	latex, err := s.ai.GenerateText(ctx, "You are a creative HSC teacher who writes high-quality HSC questions in LaTeX.", user, openai.TextOptions{
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	return &RevampResult{
		OriginalText:          text,
		Topics:                topics,
		RevampedQuestionLatex: strings.TrimSpace(latex),
	}, nil
}

func (s *generationService) GenerateByTopics(ctx context.Context, req GenerateByTopicsRequest) (*GenerateByTopicsResult, error) {
	topics := make([]string, 0, len(req.Topics))
	for _, t := range req.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		return nil, apierr.BadRequest("missing_topics", fmt.Errorf("at least one topic is required"))
	}
	if req.ExemplarCount <= 0 {
		req.ExemplarCount = 5
	}
	if req.Temperature == 0 {
		req.Temperature = 0.5
	}

	exemplars, err := s.fetchExemplars(topics, req.ExemplarCount)
	if err != nil {
		return nil, err
	}
	if len(exemplars) < 1 {
		return nil, apierr.NotFound("no_exemplars",
			fmt.Errorf("not enough questions match ALL selected topics; try fewer/different topics"))
	}

	template := mathGeneratePrompt
	if strings.EqualFold(strings.TrimSpace(req.Subject), "biology") {
		template = biologyGeneratePrompt
	}

	var blocks strings.Builder
	ids := make([]string, 0, len(exemplars))
	for i, ex := range exemplars {
		if blocks.Len() > 0 {
			blocks.WriteString("\n\n")
		}
		fmt.Fprintf(&blocks, "--- Exemplar %d ---\n%s", i+1, ex.Text)
		ids = append(ids, ex.QuestionID)
	}

	user := fmt.Sprintf(template, blocks.String(), topicsLines(topics))

	latex, err := s.ai.GenerateText(ctx, generateSystemPrompt, user, openai.TextOptions{
		Temperature:     &req.Temperature,
		MaxOutputTokens: 700,
	})
	if err != nil {
		return nil, err
	}

	return &GenerateByTopicsResult{
		Topics:        topics,
		ExemplarsUsed: len(exemplars),
		Latex:         strings.TrimSpace(latex),
		ExemplarIDs:   ids,
	}, nil
}

// fetchExemplars returns stored questions linked to every requested
// topic. Questions without text are useless as prompt material and are
// dropped here so counts and reported IDs describe the same set.
func (s *generationService) fetchExemplars(topicNames []string, limit int) ([]exemplar, error) {
	found, err := s.topics.GetByNames(nil, topicNames)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(found))
	for _, t := range found {
		ids = append(ids, t.TopicID)
	}

	qids, err := s.classifications.QuestionIDsWithAllTopics(nil, ids)
	if err != nil {
		return nil, err
	}
	if len(qids) > limit {
		qids = qids[:limit]
	}

	qs, err := s.questions.GetByIDs(nil, qids)
	if err != nil {
		return nil, err
	}
	out := make([]exemplar, 0, len(qs))
	for _, q := range qs {
		if text := strings.TrimSpace(q.Text); text != "" {
			out = append(out, exemplar{QuestionID: q.QuestionID, Text: text})
		}
	}
	return out, nil
}

type exemplar struct {
	QuestionID string
	Text       string
}

func topicsLines(topics []string) string {
	lines := make([]string, 0, len(topics))
	for _, t := range topics {
		lines = append(lines, "- "+t)
	}
	return strings.Join(lines, "\n")
}
