package api

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/models"
)

func RegisterRoutes(container *restful.Container, handler *Handler) {
	ws := new(restful.WebService)

	ws.
		Path("/api/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	ws.
		Route(ws.GET("health").
			To(handler.Health).
			Doc("Health check").
			Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
			Writes(HealthResponse{}).
			Returns(200, "OK", HealthResponse{}))

	ws.
		Route(ws.POST("/search").
			To(handler.Search).
			Doc("Hybrid search over the FAQ corpus").
			Metadata(restfulspec.KeyOpenAPITags, []string{"search"}).
			Reads(SearchRequest{}).
			Writes(SearchResponse{}).
			Returns(200, "OK", SearchResponse{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(503, "Search Unavailable", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/ask").
			To(handler.Ask).
			Doc("Answer a question with the search-augmented agent").
			Metadata(restfulspec.KeyOpenAPITags, []string{"agent"}).
			Reads(AskRequest{}).
			Writes(AskResponse{}).
			Returns(200, "OK", AskResponse{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(429, "Quota Exceeded", middleware.ErrorResponse{}).
			Returns(502, "Upstream Failure", middleware.ErrorResponse{}).
			Returns(503, "Service Unavailable", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/evaluate").
			To(handler.Evaluate).
			Doc("Judge one answer against the rubric").
			Metadata(restfulspec.KeyOpenAPITags, []string{"evaluate"}).
			Reads(EvaluateRequest{}).
			Writes(models.EvaluationChecklist{}).
			Returns(200, "OK", models.EvaluationChecklist{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(502, "Judge Failure", middleware.ErrorResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	container.Add(ws)
}
