package main

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/app"
)

// registerTools wires the shared tool registry onto the MCP server. Every
// tool here has the same name and argument shape as on the HTTP endpoint.
func registerTools(s *server.MCPServer, application *app.App, logger arbor.ILogger) {
	handle := makeHandler(application.ToolService, logger)

	s.AddTool(mcp.NewTool("bootstrap_session",
		mcp.WithDescription("Create a new cv tailoring session, optionally prefilled from an uploaded DOCX"),
		mcp.WithString("docx_base64", mcp.Description("Base64-encoded DOCX to prefill from")),
		mcp.WithString("docx_name", mcp.Description("Original filename of the upload")),
	), handle("bootstrap_session"))

	s.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Fetch the full state of a tailoring session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("get_session"))

	s.AddTool(mcp.NewTool("select_language",
		mcp.WithDescription("Choose the output language for the tailored cv (en, de or pl)"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("language", mcp.Required(), mcp.Description("Target language code")),
	), handle("select_language"))

	s.AddTool(mcp.NewTool("update_field",
		mcp.WithDescription("Set one cv field by path, e.g. full_name or work_experience[0].bullets[1]"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("field_path", mcp.Description("Field path for a single update")),
		mcp.WithObject("value", mcp.Description("New value for field_path")),
		mcp.WithArray("updates", mcp.Description("Batch of {field_path, value} edits")),
	), handle("update_field"))

	s.AddTool(mcp.NewTool("confirm_section",
		mcp.WithDescription("Confirm the contact or education section of the cv"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("section", mcp.Required(), mcp.Description("Section name: contact or education")),
		mcp.WithBoolean("refine", mcp.Description("For education: run a model pass that tightens wording first")),
	), handle("confirm_section"))

	s.AddTool(mcp.NewTool("submit_job_posting",
		mcp.WithDescription("Submit the job posting the cv should target, as raw text or a URL"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("posting_text", mcp.Description("Posting text pasted by the user")),
		mcp.WithString("posting_url", mcp.Description("Posting URL to fetch and extract")),
	), handle("submit_job_posting"))

	s.AddTool(mcp.NewTool("run_translation",
		mcp.WithDescription("Translate the cv into the selected target language"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("run_translation"))

	s.AddTool(mcp.NewTool("tailor_work_experience",
		mcp.WithDescription("Propose job-posting-tailored work experience bullets"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("tailor_work_experience"))

	s.AddTool(mcp.NewTool("accept_work_experience",
		mcp.WithDescription("Accept the pending work experience proposal into the cv"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("accept_work_experience"))

	s.AddTool(mcp.NewTool("edit_work_experience",
		mcp.WithDescription("Replace the pending work experience proposal with hand-edited roles before accepting"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithArray("roles", mcp.Required(), mcp.Description("Edited work experience entries")),
	), handle("edit_work_experience"))

	s.AddTool(mcp.NewTool("tailor_skills",
		mcp.WithDescription("Propose posting-aligned skill lists"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("tailor_skills"))

	s.AddTool(mcp.NewTool("accept_skills",
		mcp.WithDescription("Accept the pending skills proposal into the cv"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("accept_skills"))

	s.AddTool(mcp.NewTool("tailor_further_experience",
		mcp.WithDescription("Propose tailored further-experience entries"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("tailor_further_experience"))

	s.AddTool(mcp.NewTool("accept_further_experience",
		mcp.WithDescription("Accept the pending further-experience proposal into the cv"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("accept_further_experience"))

	s.AddTool(mcp.NewTool("draft_cover_letter",
		mcp.WithDescription("Draft a cover letter grounded in the cv and the job posting"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("notes", mcp.Description("Extra instructions for the letter")),
	), handle("draft_cover_letter"))

	s.AddTool(mcp.NewTool("goto_stage",
		mcp.WithDescription("Move the wizard to a stage; forward jumps require the skipped stages to be complete"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("stage", mcp.Required(), mcp.Description("Target stage name")),
	), handle("goto_stage"))

	s.AddTool(mcp.NewTool("next_stage",
		mcp.WithDescription("Advance the wizard to the next stage"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("next_stage"))

	s.AddTool(mcp.NewTool("validate_cv",
		mcp.WithDescription("Validate the cv against the two-page layout without generating"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("validate_cv"))

	s.AddTool(mcp.NewTool("preview_html",
		mcp.WithDescription("Return the rendered cv HTML without producing a PDF"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("preview_html"))

	s.AddTool(mcp.NewTool("generate_cv_from_session",
		mcp.WithDescription("Generate the final two-page cv PDF; returns the blob reference"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("generate_cv_from_session"))

	s.AddTool(mcp.NewTool("generate_cover_letter_from_session",
		mcp.WithDescription("Generate the cover letter PDF; returns the blob reference"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("notes", mcp.Description("Extra instructions for the letter")),
	), handle("generate_cover_letter_from_session"))

	s.AddTool(mcp.NewTool("generate_context_pack",
		mcp.WithDescription("Return a compact session digest for conversational frontends"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), handle("generate_context_pack"))

	s.AddTool(mcp.NewTool("session_search",
		mcp.WithDescription("Find sessions whose stored state contains the query text (operator tooling)"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to search for")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default: 20)")),
	), handle("session_search"))

	s.AddTool(mcp.NewTool("process_cv_orchestrated",
		mcp.WithDescription("Run the whole pipeline in one call: cv data plus posting in, generated PDF reference out"),
		mcp.WithObject("cv_data", mcp.Required(), mcp.Description("Complete cv document")),
		mcp.WithString("language", mcp.Description("Target language (default: en)")),
		mcp.WithString("posting_text", mcp.Description("Job posting text")),
		mcp.WithString("posting_url", mcp.Description("Job posting URL")),
		mcp.WithBoolean("cover_letter", mcp.Description("Also draft and render a cover letter")),
	), handle("process_cv_orchestrated"))

	s.AddTool(mcp.NewTool("cleanup_expired_sessions",
		mcp.WithDescription("Delete every expired session and its stored artifacts"),
	), handle("cleanup_expired_sessions"))
}
