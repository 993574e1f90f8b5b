package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/greenfoldhq/greenfold/app/repository"
	"github.com/greenfoldhq/greenfold/internal/pkg/usercontext"
)

// HandleListNotifications lists the caller's notifications, newest first.
func HandleListNotifications(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	offset, limit := parsePagination(c)

	repo := repository.GetGlobalFactory().GetNotificationRepository()
	notifications, err := repo.GetByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load notifications")
	}
	unread, err := repo.CountUnread(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load notifications")
	}

	return c.JSON(fiber.Map{"notifications": notifications, "unread": unread})
}

// HandleMarkNotificationRead marks one notification as read.
func HandleMarkNotificationRead(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid notification id")
	}

	repo := repository.GetGlobalFactory().GetNotificationRepository()
	if err := repo.MarkRead(uint(id), userCtx.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Notification not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update notification")
	}
	return c.JSON(fiber.Map{"read": true})
}

// HandleMarkAllNotificationsRead marks all of the caller's notifications read.
func HandleMarkAllNotificationsRead(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repo := repository.GetGlobalFactory().GetNotificationRepository()
	if err := repo.MarkAllRead(userCtx.UserID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update notifications")
	}
	return c.JSON(fiber.Map{"read": true})
}
