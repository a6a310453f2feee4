package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/relaykit/relaykit/internal/core/models"
)

// AuthConfig holds the ops credential and token-signing material.
type AuthConfig struct {
	Username     string
	PasswordHash []byte
	JwtSecret    string
	TokenTTL     time.Duration
}

// Login checks the ops credential and issues a signed bearer token.
func Login(c *fiber.Ctx, auth *AuthConfig) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "invalid request body",
		})
	}

	if req.Username != auth.Username ||
		bcrypt.CompareHashAndPassword(auth.PasswordHash, []byte(req.Password)) != nil {
		log.Warn().Str("username", req.Username).Msg("Ops login rejected")
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
			Error: "invalid credentials",
		})
	}

	claims := jwt.MapClaims{
		"username": req.Username,
		"exp":      time.Now().Add(auth.TokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(auth.JwtSecret))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "failed to sign token",
		})
	}

	return c.Status(fiber.StatusOK).JSON(models.TokenResponse{Token: signed})
}
