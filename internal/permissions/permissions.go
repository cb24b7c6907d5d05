// Package permissions 集中角色判定，页面和中间件统一走这里，
// 不在各处重复比较role字符串。
package permissions

import "github.com/autoflex/console/internal/autoflex"

// CanManage 是否允许执行管理操作（新建/编辑/删除）
func CanManage(u *autoflex.User) bool {
	return u != nil && u.Role == autoflex.RoleAdmin
}
