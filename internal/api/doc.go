// Package api handles incoming HTTP requests, request validation and
// response formatting for the generation service. Handlers translate HTTP
// concerns into task orchestrator and store calls; task progress reaches
// clients as server-sent events.
package api
