package controller

import (
	"codeassist-be/internal/pkg/serverutils"
	"codeassist-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Push(ctx *fiber.Ctx) error
}

// authController exposes the out-of-band auth surface: a trusted caller
// authenticates an already-open session over HTTP and the result is
// pushed into the duplex channel.
type authController struct {
	authService service.IAuthService
}

func NewAuthController(authService service.IAuthService) IAuthController {
	return &authController{
		authService: authService,
	}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/auth/v1")
	h.Post("push", c.Push)
}

type pushAuthRequest struct {
	SessionId   string                 `json:"session_id" validate:"required"`
	Token       string                 `json:"token" validate:"required"`
	SubjectData map[string]interface{} `json:"subject_data"`
}

func (c *authController) Push(ctx *fiber.Ctx) error {
	var req pushAuthRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.authService.PushAuth(ctx.Context(), req.SessionId, req.Token, req.SubjectData); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Auth pushed to session", fiber.Map{
		"session_id": req.SessionId,
	}))
}
