// Package prompt renders the model prompts used by the profiling pipeline.
// Every method is a pure function of its inputs.
package prompt

import (
	"fmt"
	"strings"
)

const englishPrefix = "Respond in English.\n\n"

const shortenTemplate = `Analyze the following page content and extract only the most relevant information about:
1. What the company does and how they do it
2. Any AI/ML technologies, capabilities, or features mentioned
3. Their products, services, or solutions
4. Their industry and target market

Remove all other content including navigation menus, footers, contact information, legal text, and general website elements.
If the company name is mentioned, include it at the start.
If no relevant information is found, respond with 'No relevant content found'.

Page Content:
%s`

const summaryTemplate = `The following are the contents of some of the pages of a company's website.

Your task is to generate a comprehensive description of the company with special focus on:
1. What AI/ML technologies or capabilities they use or develop (e.g., machine learning, deep learning, NLP, computer vision, etc.)
2. How AI/ML is integrated into their products/services (provide specific examples)
3. Whether AI/ML is a core component of their offering and to what extent
4. The specific industry and business model
5. Any information about their development approach.

Start the description with the name of the company if its provided in the contents. Be specific about AI/ML aspects - if they're not mentioned, explicitly state that. If AI/ML is mentioned but details are unclear, note this uncertainty.

Contents of the pages:
%s`

const linksTemplate = `The following are all the links available on the homepage of a company's website. Your task is to find the most relevant pages that would contain information about:
1. What the company does and their core offerings
2. Their AI/ML technologies and capabilities
3. Their products, services, or solutions
4. Their industry focus and business model

Select a maximum of %d links that are most likely to contain this information.
Exclude these types of pages:
- Contact, About Us, Team, Careers
- Legal, Privacy, Terms, Cookie Policy
- Blog, News, Press Releases (unless they seem to contain product/technology information)
- Login, Sign Up, Support pages

Return only a list of links, no other text. If no relevant links are found, return an empty list.

Links: %s`

const classifyTemplate = `The following is a comprehensive description of a company. Classify the company using only the options listed below.

Focus types:
%s

Industries:
%s

Revenue models:
%s

Return a single JSON object with exactly these keys and no other text:
{"short_description": "<one sentence describing what the company does>", "focus_type": "<one focus type>", "industry": "<one industry>", "revenue_models": ["<one or more revenue models>"]}

If the description does not support an answer for a key, use "Uncertain".

The comprehensive description of the company:
%s`

const checkAITemplate = `The following is a comprehensive description of a company. Your task is to evaluate if the company is an AI company or uses AI significantly in their operations. Consider these criteria:
%s

Respond with either 'Yes' or 'No'.
- 'Yes' if they meet any of the above criteria (either primary AI focus or significant AI usage)
- 'No' if they don't meet any criteria

If the information is unclear, respond with 'No'.

The comprehensive description of the company:
%s`

// Builder renders prompts for a fixed page budget and taxonomy set.
type Builder struct {
	totalPages int
	tax        Taxonomies
}

// New creates a Builder. totalPages is K, the number of page slots per
// company; link selection asks for at most K-1 links.
func New(totalPages int, tax Taxonomies) *Builder {
	return &Builder{totalPages: totalPages, tax: tax}
}

// MaxLinks is the most links the selection prompt asks for.
func (b *Builder) MaxLinks() int {
	if b.totalPages < 1 {
		return 0
	}
	return b.totalPages - 1
}

// ShortenPage asks the shortener model to strip one page down to company facts.
func (b *Builder) ShortenPage(text string) string {
	return englishPrefix + fmt.Sprintf(shortenTemplate, text)
}

// Summarize asks for one description synthesized from every page.
func (b *Builder) Summarize(pages []string) string {
	return englishPrefix + fmt.Sprintf(summaryTemplate, strings.Join(pages, "\n\n\n"))
}

// SelectLinks asks the model to choose crawl targets from the homepage links.
// Links are rendered as a quoted list so the reply can echo the same form.
func (b *Builder) SelectLinks(links []string) string {
	return fmt.Sprintf(linksTemplate, b.MaxLinks(), quoteList(links))
}

// Classify asks for the four classification keys as a JSON object.
func (b *Builder) Classify(description string) string {
	return englishPrefix + fmt.Sprintf(classifyTemplate,
		bullets(b.tax.FocusTypes),
		bullets(b.tax.Industries),
		bullets(b.tax.RevenueModels),
		description)
}

// CheckAI asks for a Yes/No verdict on whether the company is AI-centric.
func (b *Builder) CheckAI(description string) string {
	criteria := make([]string, len(b.tax.AICriteria))
	for i, c := range b.tax.AICriteria {
		criteria[i] = fmt.Sprintf("%d. %s", i+1, c)
	}
	return englishPrefix + fmt.Sprintf(checkAITemplate, strings.Join(criteria, "\n"), description)
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func bullets(items []string) string {
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(it)
	}
	return sb.String()
}
