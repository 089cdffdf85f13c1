package service

import (
	"golang.org/x/crypto/bcrypt"
)

// AdminGate 驗證管理員重置的憑證
// 房間 ID 以明文比對，使用者名稱只保存 bcrypt 雜湊
type AdminGate struct {
	roomID       string
	usernameHash []byte
}

// NewAdminGate roomID 或 usernameHash 為空時停用
func NewAdminGate(roomID, usernameHash string) *AdminGate {
	return &AdminGate{roomID: roomID, usernameHash: []byte(usernameHash)}
}

func (g *AdminGate) Enabled() bool {
	return g != nil && g.roomID != "" && len(g.usernameHash) > 0
}

// Reserved 房間 ID 是否保留給管理員，保留的 ID 不能被建立為一般房間
func (g *AdminGate) Reserved(roomID string) bool {
	return g.Enabled() && roomID == g.roomID
}

// Allows 房間 ID 與使用者名稱都符合時才允許
func (g *AdminGate) Allows(roomID, username string) bool {
	if !g.Reserved(roomID) || username == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.usernameHash, []byte(username)) == nil
}
