package handlers

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/signaling-relay/internal/models"
	"github.com/mossy-p/signaling-relay/internal/relay"
)

// ListRooms lists every room created since start with its member count
func ListRooms(reg *relay.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		rooms := make([]models.RoomSummary, 0)
		for _, name := range reg.Rooms() {
			r, ok := reg.Lookup(name)
			if !ok {
				continue
			}
			rooms = append(rooms, models.RoomSummary{Room: name, Count: len(r.Members())})
		}
		c.JSON(http.StatusOK, rooms)
	}
}

// GetRoom gets the current membership of a room
func GetRoom(reg *relay.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")

		r, ok := reg.Lookup(roomID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}

		members := r.Members()
		info := models.RoomInfo{
			Room:    roomID,
			Members: make([]models.MemberInfo, 0, len(members)),
			Count:   len(members),
		}
		for id, m := range members {
			info.Members = append(info.Members, models.MemberInfo{UserID: id, DisplayName: m.DisplayName})
		}
		slices.SortFunc(info.Members, func(a, b models.MemberInfo) int {
			return strings.Compare(a.UserID, b.UserID)
		})

		c.JSON(http.StatusOK, info)
	}
}
