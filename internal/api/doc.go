// Package api 處理 HTTP 請求路由。
//
// 這個包把 WebSocket 入口、房間查詢與管理員端點掛到 gin 路由上，
// 實際處理邏輯在 handlers 子包中。
package api
