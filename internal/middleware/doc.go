// Package middleware 提供 HTTP 請求處理的中間件。
//
// 目前包含管理員 JWT 驗證與 zap 請求日誌。
package middleware
