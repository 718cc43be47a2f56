package api

import (
	"net/http"

	"retail-order-service/internal/service"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type forgotPasswordRequest struct {
	Email        string `json:"email"`
	DevReturnOTP bool   `json:"devReturnOtp"`
}

// signup handles account registration
func (h *Handler) signup(c *gin.Context) {
	var req service.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	account, err := h.accounts.Signup(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Signup successful",
		"user":    account,
	})
}

// login handles identifier and password login
func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	res, err := h.accounts.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Login successful",
		"matchedBy": res.MatchedBy,
		"user":      res.Account,
		"token":     res.Token,
	})
}

// forgotPassword issues a reset code
func (h *Handler) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	otp, err := h.accounts.ForgotPassword(c.Request.Context(), req.Email, req.DevReturnOTP)
	if err != nil {
		respondError(c, err)
		return
	}

	if otp != "" {
		c.JSON(http.StatusOK, gin.H{"message": "OTP sent (dev)", "otp": otp})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OTP sent successfully to email"})
}

// verifyOTP confirms a reset code and optionally sets a new password
func (h *Handler) verifyOTP(c *gin.Context) {
	var req service.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	changed, err := h.accounts.VerifyOTP(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "OTP verified successfully"
	if changed {
		message = "OTP verified successfully and password updated"
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// listCustomers handles the admin customer listing
func (h *Handler) listCustomers(c *gin.Context) {
	customers, err := h.accounts.ListCustomers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Customer users fetched successfully",
		"customers": customers,
	})
}
