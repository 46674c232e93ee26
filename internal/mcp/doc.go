// Package mcp exposes the workflow engine as MCP tools over stdio.
//
// Tools:
//
//	workflow_start   create a workflow and return its first action
//	workflow_step    report an action outcome and get the next action
//	workflow_status  load one workflow, or list active ids when no id is given
//	workflow_abort   abort and archive a workflow
//	reviewer_list    configured reviewers with live availability
//
// Actions are returned as their tagged JSON form ("type" plus fields), the
// same documents the HTTP API and the CLI --json output produce.
//
// Keys are snake_case throughout: workflow_id, failed_step, suggested_files,
// and workflows for the active id list. workflow_status returns the full
// persisted context under workflow, and omits it for an unknown id.
package mcp
