package project

import "go-task-mirror/internal/domain"

// 快照上的纯派生视图：无副作用、无独立缓存，快照一变就该重算。

// ByCategory 精确匹配（区分大小写，闭集外的值永远匹配不到）
func ByCategory(snap []domain.Task, cat domain.Category) []domain.Task {
	out := make([]domain.Task, 0, len(snap))
	for _, t := range snap {
		if t.Category == cat {
			out = append(out, t)
		}
	}
	return out
}

// DueToday 今天到期且未完成；已完成的今日任务不在此视图里
func DueToday(snap []domain.Task, today string) []domain.Task {
	out := make([]domain.Task, 0, len(snap))
	for _, t := range snap {
		if t.DueDate == today && !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

// ByID 详情页单任务查找；found=false 表示「不存在」而非「仍在加载」，
// 加载态由调用方结合镜像的 Loading 判断
func ByID(snap []domain.Task, id string) (domain.Task, bool) {
	for _, t := range snap {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}
