package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

/* ============================================
   Locals Keys (diisi middleware AuthJWT)
   ============================================ */

const (
	LocUserID         = "user_id"          // string UUID (actor)
	LocSchoolID       = "school_id"        // string UUID (tenant)
	LocActiveSchoolID = "active_school_id" // string UUID
	LocRolesGlobal    = "roles_global"     // []string
	LocSchoolRoles    = "school_roles"     // []any (claim mentah)
)

// GetSchoolIDFromToken: tenant dari locals. Prioritas active_school_id → school_id.
func GetSchoolIDFromToken(c *fiber.Ctx) (uuid.UUID, error) {
	for _, key := range []string{LocActiveSchoolID, LocSchoolID} {
		if id, ok := parseLocalUUID(c.Locals(key)); ok {
			return id, nil
		}
	}
	return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "School ID tidak ditemukan di token")
}

// GetUserIDFromToken: actor dari locals. Wajib ada untuk endpoint admin.
func GetUserIDFromToken(c *fiber.Ctx) (uuid.UUID, error) {
	if id, ok := parseLocalUUID(c.Locals(LocUserID)); ok {
		return id, nil
	}
	return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "User ID tidak valid")
}

func parseLocalUUID(v any) (uuid.UUID, bool) {
	switch t := v.(type) {
	case uuid.UUID:
		return t, t != uuid.Nil
	case string:
		id, err := uuid.Parse(strings.TrimSpace(t))
		return id, err == nil && id != uuid.Nil
	}
	return uuid.Nil, false
}
