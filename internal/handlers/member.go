package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/makerplan/backend/internal/middleware"
	"github.com/makerplan/backend/internal/services"
	"github.com/makerplan/backend/pkg/response"
	"gorm.io/gorm"
)

type MemberHandler struct {
	memberService *services.MemberService
}

func NewMemberHandler(db *gorm.DB, events *services.EventPublisher) *MemberHandler {
	return &MemberHandler{
		memberService: services.NewMemberService(db, events),
	}
}

// List returns the project roster, invitations included
// GET /api/projects/:id/members
func (h *MemberHandler) List(c *gin.Context) {
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	members, err := h.memberService.ListRoster(middleware.GetUserID(c), uint(projectID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, members)
}

// Invite adds a pending invitation for an email address
// POST /api/projects/:id/members
func (h *MemberHandler) Invite(c *gin.Context) {
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	var req services.InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	invite, err := h.memberService.Invite(middleware.GetUserID(c), uint(projectID), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, invite)
}

// UpdateRole changes a member's role
// PUT /api/projects/:id/members/:memberId
func (h *MemberHandler) UpdateRole(c *gin.Context) {
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	memberID, err := strconv.ParseUint(c.Param("memberId"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}

	var req services.UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	member, err := h.memberService.UpdateRole(middleware.GetUserID(c), uint(projectID), uint(memberID), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, member)
}

// Remove deletes a membership row
// DELETE /api/projects/:id/members/:memberId
func (h *MemberHandler) Remove(c *gin.Context) {
	projectID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}
	memberID, err := strconv.ParseUint(c.Param("memberId"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}

	if err := h.memberService.Remove(middleware.GetUserID(c), uint(projectID), uint(memberID)); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"removed": true})
}

// MyInvitations lists the caller's pending invitations
// GET /api/invitations
func (h *MemberHandler) MyInvitations(c *gin.Context) {
	invites, err := h.memberService.ListMyInvitations(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, invites)
}

// Accept accepts an invitation by token
// POST /api/invitations/:token/accept
func (h *MemberHandler) Accept(c *gin.Context) {
	member, err := h.memberService.Accept(middleware.GetUserID(c), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, member)
}

// Decline declines an invitation by token
// POST /api/invitations/:token/decline
func (h *MemberHandler) Decline(c *gin.Context) {
	if err := h.memberService.Decline(middleware.GetUserID(c), c.Param("token")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"declined": true})
}
