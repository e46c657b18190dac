package context

import (
	"bytes"
	"text/template"
)

// SystemPrompt heads every conversation replayed to the model. It uses Go
// text/template syntax with PromptData fields.
const SystemPrompt = `You are a research assistant. For each user message decide whether you can answer from general knowledge or whether the answer needs fresh information from the web.

- Time: {{.Time}}
- Session: {{.SessionID}}
{{- if .Tools}}
- Available tools: {{range $i, $t := .Tools}}{{if $i}}, {{end}}{{$t}}{{end}}

Call respond_directly for greetings, small talk and questions you can answer reliably yourself. Call generate_query with a short search topic when the question is about recent events, specific facts, or anything you are not confident about.
{{- end}}

Be concise and direct. Use markdown formatting when it helps readability.`

const expandPrompt = `User has given this query to make a web search. Can you expand the query to make it more suitable for the web search.

** Additional Guidelines: **
- Answer with only the expanded query and nothing else.
- The query should be good for web search in the related topic.
- Don't make it long, keep it concise.

** Query to Expand **
'{{.}}'`

// ExtractiveSystemPrompt pins the summarizer to verbatim selection.
const ExtractiveSystemPrompt = `You are a highly skilled extractive summarizer. Your goal is to identify and present the most critical sentences from a given text, ensuring no essential information for subsequent summarization stages is lost. Your output must consist solely of verbatim sentences from the original document, carefully selected for maximum information density and coverage. STRICT ADHERENCE TO ORIGINAL WORDING IS PARAMOUNT. Do not add your own language in the response, strictly respond with the summary only.`

const extractivePrompt = `You are an **expert extractive summarizer** with a critical mission: to identify and present the most significant and informative sentences **directly from the provided text**.

**ABSOLUTELY CRITICAL RULE: DO NOT REPHRASE, PARAPHRASE, OR INTRODUCE ANY NEW INFORMATION. EVERY SINGLE WORD IN YOUR SUMMARY MUST BE AN EXACT, UNALTERED QUOTE FROM THE ORIGINAL DOCUMENT.**

Your selection process should prioritize sentences that:
* Clearly articulate **core concepts and central themes**.
* Contain **key arguments and supporting evidence**.
* Provide **critical details, facts, figures, or definitions**.
* Represent **important conclusions or outcomes**.

The goal is a summary that is as **concise as possible** while **retaining all essential, valuable information**. Focus on **factual accuracy and the completeness of extracted facts**.

Document:
{{.}}

Extractive Summary:`

const synthesisPrompt = `**Do not mention or refer to the 'document,' 'text,' 'source,' or any similar term that indicates the information came from a provided source.**

Generate a comprehensive and carefully structured summary of the material below. Capture the essence of the content and provide insightful details. Present the information as a standalone piece. Follow this structure:
---
### **1. Title**
* A precise, informative title that captures the core subject. Use keywords from the material.

### **2. Introduction & Contextualization**
* **Topic & Significance:** Introduce the main topic and why it matters in its broader field.
* **Purpose & Scope:** State the purpose of the content and the scope it covers.
* **Key Questions:** Identify the central questions or problems being addressed.
* **Main Themes:** Give a high-level overview of the prominent arguments and themes.

### **3. Detailed Analysis & Elaboration**
* **Sectional Breakdown:** Organize the body into logical sections with descriptive subheadings.
* **Key Points:** Explain the core ideas, concepts and findings in enough detail to convey real understanding.
* **Evidence & Examples:** Integrate specific examples and data points to substantiate explanations.
* **Relationships & Nuances:** Explain cause and effect, comparisons and contrasts between ideas.
* **Methodology (If Applicable):** Briefly explain any research method described and its relevance.

### **4. Concluding Insights & Implications**
* **Core Takeaways:** Synthesize the most critical insights and conclusions.
* **Open Issues:** Discuss unanswered questions, limitations and future directions.
* **Overall Significance:** Reiterate the overall significance of the content.

---

### **Additional Guidelines:**
* Maintain a professional, objective tone with precise and clear language.
* Present complex ideas accessibly without sacrificing accuracy.
* Balance conciseness with detail. Every sentence should contribute meaningfully.
* Reflect the original arguments and emphasis without adding external interpretation.
* **Never mention the 'document,' 'text,' 'source,' or any similar term. Write as if the summary itself is the primary source.**
---

**Text to Process:**
'{{.}}'`

var (
	expandTmpl     = template.Must(template.New("expand").Parse(expandPrompt))
	extractiveTmpl = template.Must(template.New("extractive").Parse(extractivePrompt))
	synthesisTmpl  = template.Must(template.New("synthesis").Parse(synthesisPrompt))
)

func render(t *template.Template, arg string) string {
	var buf bytes.Buffer
	_ = t.Execute(&buf, arg)
	return buf.String()
}

// ExpandPrompt builds the query expansion request for topic.
func ExpandPrompt(topic string) string { return render(expandTmpl, topic) }

// ExtractivePrompt builds the per-document summarization request.
func ExtractivePrompt(document string) string { return render(extractiveTmpl, document) }

// SynthesisPrompt builds the final structured-answer request over the
// joined digests.
func SynthesisPrompt(digests string) string { return render(synthesisTmpl, digests) }
