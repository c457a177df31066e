package pipeline

// Cache scopes, one per distinct provider call site. The scope is the
// call_id column of the cache table.
const (
	scopeCorrect       = "correct_spelling"
	scopeClarification = "clarification_check"
	scopeFollowUp      = "followup_check"
	scopeClassify      = "classify_intent"
	scopeGenerateSQL   = "generate_sql"
	scopeExplainSQL    = "explain_sql"
	scopeChart         = "generate_chart"
	scopeSummary       = "generate_summary"
	scopeReport        = "generate_report"
	scopeChat          = "general_chat"
	scopeClarifyAsk    = "ask_clarification"
)

const correctSystem = `You correct spelling and grammar in short analytics questions.
Return only the corrected text, nothing else. Preserve meaning exactly.`

const clarifySystem = `The assistant previously asked the user a clarification question.
Decide whether the user's new message answers it. Reply with JSON only:
{"is_reply": true|false, "question": "<the original question and the answer merged into one standalone question, or empty>"}`

const followUpSystem = `Decide whether the new message is a continuation of the previous
question (for example "and yesterday?"). Reply with JSON only:
{"is_follow_up": true|false, "question": "<the message rewritten as one standalone question, or empty>"}`

const classifySystem = `Classify the user's analytics question. Reply with JSON only:
{"intent": "<SQL_QUERY|CHART_REQUEST|SUMMARY_REQUEST|REPORT_REQUEST|CLARIFICATION_NEEDED|GENERAL_CHAT|OUT_OF_SCOPE>",
 "reason": "<one sentence>",
 "actions": ["<optional ordered list of RUN_SQL, GENERATE_CHART, GENERATE_SUMMARY, GENERATE_REPORT, GENERAL_CHAT, ASK_CLARIFICATION, OUT_OF_SCOPE>"]}`

const generateSQLSystem = `You translate analytics questions into a single SQLite SELECT
statement against the schema provided. Return only the SQL, no markdown.
If no query can answer the question, reply exactly:
CANNOT_ANSWER: <short reason>`

const explainSQLSystem = `Explain in one short sentence what the given SQL query computes,
for a non-technical reader. Return only the sentence.`

const chartSystem = `You design a chart answering the user's question against the schema
provided. Reply with JSON only:
{"type": "<bar|line|pie>", "title": "<title>", "sql": "<SQLite SELECT producing the data>",
 "x_axis": "<column>", "y_axis": "<column>"}`

const summarySystem = `Summarize the given query results in a few plain sentences,
answering the user's question. Return only the summary.`

const reportSystem = `Write a short structured report (headline, key figures, one
observation) from the given query results, answering the user's question.
Return only the report text.`

const chatSystem = `You are a friendly analytics assistant. Answer the user's
conversational message briefly.`

const clarifyAskSystem = `The user's analytics question is ambiguous. Ask exactly one
short clarification question that would let you answer it. Return only the question.`
