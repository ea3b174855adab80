package mcp

import "github.com/mark3labs/mcp-go/mcp"

var summaryGenerateToolDef = mcp.NewTool("summary_generate",
	mcp.WithDescription("Generate a narrative handover and a technical manifest for a chat thread "+
		"using the active instruction, and save the result to history. "+
		"If saving fails the reports are still returned with saved=false and save_error set."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("The full chat history to summarize"),
	),
)

var summaryListToolDef = mcp.NewTool("summary_list",
	mcp.WithDescription("List saved summaries, most recent first. Returns titles, previews and text statistics."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum items to return (default: configured page size, max: 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Number of items to skip"),
	),
)

var summaryFetchToolDef = mcp.NewTool("summary_fetch",
	mcp.WithDescription("Fetch one saved summary including both reports and the original chat text."),
	mcp.WithNumber("id",
		mcp.Required(),
		mcp.Description("Summary ID"),
	),
)

var summaryDeleteToolDef = mcp.NewTool("summary_delete",
	mcp.WithDescription("Permanently delete a saved summary. Deleting a missing ID succeeds with deleted=false."),
	mcp.WithNumber("id",
		mcp.Required(),
		mcp.Description("Summary ID"),
	),
)

var instructionListToolDef = mcp.NewTool("instruction_list",
	mcp.WithDescription("List every instruction template and the ID of the one generation currently uses."),
)

var instructionActiveToolDef = mcp.NewTool("instruction_active",
	mcp.WithDescription("Return the instruction template generation currently uses: "+
		"the active one, else the built-in default, else the oldest."),
)

var instructionSaveToolDef = mcp.NewTool("instruction_save",
	mcp.WithDescription("Create a new instruction template, or edit one when id is given. "+
		"The built-in default can be edited but keeps its protected status."),
	mcp.WithNumber("id",
		mcp.Description("Existing instruction ID to edit (omit to create)"),
	),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Template name"),
	),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("Prompt text sent ahead of the chat history"),
	),
	mcp.WithBoolean("activate",
		mcp.Description("Make this the active template"),
	),
)

var instructionActivateToolDef = mcp.NewTool("instruction_activate",
	mcp.WithDescription("Make one instruction template the only active one."),
	mcp.WithNumber("id",
		mcp.Required(),
		mcp.Description("Instruction ID"),
	),
)

var instructionDeleteToolDef = mcp.NewTool("instruction_delete",
	mcp.WithDescription("Delete an instruction template. The built-in default cannot be deleted (PROTECTED_RECORD)."),
	mcp.WithNumber("id",
		mcp.Required(),
		mcp.Description("Instruction ID"),
	),
)

var summaryStatsToolDef = mcp.NewTool("summary_stats",
	mcp.WithDescription("Count words, characters and estimated tokens for a chat thread without generating or storing anything."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("The chat history to measure"),
	),
)
