package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-task-mirror/internal/domain"
	"go-task-mirror/internal/sync/mirror"
	"go-task-mirror/internal/sync/session"
	mdw "go-task-mirror/internal/transport/http/middleware"
	resp "go-task-mirror/internal/transport/http/response"
)

// streamHandler 每条连接一套门 + 镜像：
// 认证 → 打开订阅 → 每次推送下发全量快照 → 断开或登出即拆除。
// 同一用户登出事件会让该用户所有在线流同时收到「无身份」并结束。
func streamHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(mdw.KeyUserID)
		u, err := loadUser(c, d, uid)
		if err != nil || u == nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "unknown user"))
			return
		}
		ident := u.Identity()
		ctx := c.Request.Context()

		gate := session.New(d.Provider, d.Log)
		if err := gate.Start(ctx, ident); err != nil {
			// 事件流打不开：门照常工作，只是收不到其它会话的登出
			d.Log.Warn("stream without identity feed", zap.String("uid", uid), zap.Error(err))
		}
		defer gate.Close()

		m := mirror.New(d.Store, d.Log)
		if err := m.Activate(ctx, uid); err != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeServerError, "subscription unavailable"))
			return
		}
		defer m.Deactivate()

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Writer.Flush()

		heartbeat := time.NewTicker(time.Duration(d.Stream.HeartbeatSec) * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case ch := <-gate.Observe():
				if ch.State == session.StateAnonymous {
					// 登出：先拆订阅清快照，再告知客户端
					m.Deactivate()
					c.SSEvent("signout", gin.H{"label": domain.DisplayLabel(nil)})
					c.Writer.Flush()
					return
				}

			case snap := <-m.Updates():
				c.SSEvent("snapshot", snap)
				c.Writer.Flush()

			case <-m.Errs():
				// 只下发一条可见错误，最后一份好快照留在客户端
				c.SSEvent("error", gin.H{"msg": "task subscription error"})
				c.Writer.Flush()

			case <-heartbeat.C:
				c.SSEvent("ping", nil)
				c.Writer.Flush()
			}
		}
	}
}
