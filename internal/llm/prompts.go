package llm

// ChatSystemPrompt seeds every streamed completion with a fixed style
// and formatting instruction.
const ChatSystemPrompt = "You are a highly professional assessor and tutor. " +
	"Answer clearly and concisely. Format responses with plain Markdown: " +
	"use headings sparingly, bold for key terms, and short paragraphs."

// ClassificationRubric is the fixed 5-level reliance scale the oracle
// scores the latest user line against. The reply is expected to be the
// number and category, e.g. "5. Full AI".
const ClassificationRubric = `Assess the User input according to the following scale:
1. No AI: This represents tasks or processes that are done entirely by humans without any AI involvement.
2. Ideas and Structure: This level indicates that AI is used to generate ideas or structure content, but the primary content creation is still human-driven.
3. AI Editing: At this stage, AI is used to assist with editing or refining content that has been primarily generated by a human.
4. AI + Human Evaluation: Here, both AI and humans are involved in creating and evaluating the content. This stage likely involves a collaborative effort where AI generates content or makes suggestions, and humans refine or approve it. This does not include examples where AI generates most of the content.
5. Full AI: AI is almost fully responsible for the task or process with little to no human intervention. For example: create me a essay about ... or create me a paragraph about...
Please return only the number and category (e.g., '5. Full AI') that the user's messages correspond to.`

// FeedbackPrompt asks the oracle for a short alternative prompt that
// keeps authorship with the student.
const FeedbackPrompt = "As a supportive chatbot, suggest an alternative prompt based on the " +
	"user's input that avoids meeting one of the following criteria: AI + Human Evaluation: " +
	"Where AI generates content or suggestions, and humans refine or approve it. Full AI " +
	"Responsibility: Where AI is fully responsible for the task with minimal or no human " +
	"intervention. Create your 50 word maximum response prompt example to align with either: " +
	"Ideas and Structure: AI is used to generate ideas or structure content, but the primary " +
	"creation remains human-driven; or Research: AI is utilized as a research tool to find " +
	"credible resources on a given topic. Word this as a direct request and not a question. " +
	"For example: 'Please generate ideas for an essay about (insert topic here)'."
