package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/scry-studio/internal/api"
	apiMiddleware "github.com/phrazzld/scry-studio/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)

	generationHandler := api.NewGenerationHandler(app.orchestrator, app.outputs, app.logger)
	documentHandler := api.NewDocumentHandler(app.documents, app.logger)
	eventsHandler := api.NewEventsHandler(app.hub, api.DefaultPingInterval, app.logger)
	healthHandler := api.NewHealthHandler(app.healthChecks(), app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.tokens)

	r.Route("/api/projects/{projectID}", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)
		r.Use(apiMiddleware.RequireProject)

		// Source documents
		r.Post("/documents", documentHandler.CreateDocument)
		r.Get("/documents", documentHandler.ListDocuments)

		// Outputs and node operations
		r.Post("/outputs", generationHandler.StartGeneration)
		r.Get("/outputs", generationHandler.ListOutputs)
		r.Get("/outputs/{outputID}", generationHandler.GetOutput)
		r.Post("/outputs/{outputID}/nodes/{nodeID}/explain", generationHandler.ExplainNode)
		r.Get("/outputs/{outputID}/nodes/{nodeID}/explain/stream", generationHandler.StreamExplanation)
		r.Post("/outputs/{outputID}/nodes/{nodeID}/expand", generationHandler.ExpandNode)

		// Tasks and notifications
		r.Get("/tasks", generationHandler.ListTasks)
		r.Delete("/tasks/{taskID}", generationHandler.CancelTask)
		r.Get("/events", eventsHandler.Stream)
	})

	r.Get("/health", healthHandler.Health)

	return r
}
