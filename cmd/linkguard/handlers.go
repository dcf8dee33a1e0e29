package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/helpers"
	"github.com/linkguard/linkguard/automod/moderation"

	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type UserRecordOutput struct {
	Record *moderation.Record `json:"record"`
	State  moderation.State   `json:"state"`
}

type UserHistoryOutput struct {
	UserID  string                    `json:"user_id"`
	History []moderation.HistoryEntry `json:"history"`
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("linkguard-http-internal-error", "err", err)
	}
	if errorMessage == "" {
		errorMessage = http.StatusText(code)
	}
	if !c.Response().Committed {
		_ = c.JSON(code, GenericError{Error: http.StatusText(code), Message: errorMessage})
	}
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	ctx := c.Request().Context()
	if err := srv.engine.Moderator.Store.Ping(ctx); err != nil {
		srv.logger.Error("moderation store health check failed", "err", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "error", "msg": "moderation store unreachable"})
	}
	if srv.rdb != nil {
		if err := srv.rdb.Ping(ctx).Err(); err != nil {
			srv.logger.Error("redis health check failed", "err", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "error", "msg": "redis unreachable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

// Receives a chat message from the gateway, and responds with the moderation outcome.
func (srv *Server) HandleMessage(c echo.Context) error {
	ctx := c.Request().Context()

	var msg event.MessageEvent
	if err := c.Bind(&msg); err != nil {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "InvalidRequest",
			Message: fmt.Sprintf("failed to parse message event: %s", err),
		})
	}
	if msg.EventID == "" || msg.UserID == "" {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "InvalidRequest",
			Message: "event_id and user_id are required",
		})
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	out, err := srv.engine.ProcessMessage(ctx, &msg)
	if err != nil {
		return fmt.Errorf("processing message %s: %w", msg.EventID, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (srv *Server) HandleUserRecord(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("userID")

	rec, err := srv.engine.Moderator.Record(ctx, userID)
	if errors.Is(err, moderation.ErrNotFound) {
		return c.JSON(http.StatusNotFound, GenericError{
			Error:   "UserNotFound",
			Message: fmt.Sprintf("no moderation record for user: %s", userID),
		})
	} else if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UserRecordOutput{
		Record: rec,
		State:  rec.State(time.Now()),
	})
}

func (srv *Server) HandleUnmute(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("userID")

	rec, err := srv.engine.Moderator.Unmute(ctx, userID)
	if errors.Is(err, moderation.ErrNotFound) {
		return c.JSON(http.StatusNotFound, GenericError{
			Error:   "UserNotFound",
			Message: fmt.Sprintf("no moderation record for user: %s", userID),
		})
	} else if errors.Is(err, moderation.ErrStateConflict) {
		return c.JSON(http.StatusConflict, GenericError{
			Error:   "StateConflict",
			Message: "record was modified concurrently, try again",
		})
	} else if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UserRecordOutput{
		Record: rec,
		State:  rec.State(time.Now()),
	})
}

func (srv *Server) HandleUserHistory(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("userID")

	limit := defaultHistoryLimit
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, GenericError{
				Error:   "InvalidRequest",
				Message: fmt.Sprintf("invalid limit: %s", s),
			})
		}
		limit = min(n, maxHistoryLimit)
	}
	if srv.engine.History == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "link history not configured")
	}
	hist, err := srv.engine.History.ListHistory(ctx, userID, limit)
	if err != nil {
		return err
	}
	if hist == nil {
		hist = []moderation.HistoryEntry{}
	}
	return c.JSON(http.StatusOK, UserHistoryOutput{
		UserID:  userID,
		History: hist,
	})
}

func (srv *Server) HandleDomainReport(c echo.Context) error {
	ctx := c.Request().Context()
	domain := c.Param("domain")

	rep, err := srv.engine.DomainReport(ctx, domain)
	if errors.Is(err, helpers.ErrNotLink) {
		return c.JSON(http.StatusBadRequest, GenericError{
			Error:   "InvalidDomain",
			Message: err.Error(),
		})
	} else if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}
