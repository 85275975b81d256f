// Package textnorm 把文件名主干（stem）规范化为用于粗比较的键。
//
// 规范化是纯函数：同一输入永远得到同一输出，因此可以按输入字符串做缓存。
// 缓存的生命周期由 Normalizer 的持有者决定（通常是一次 run）。
package textnorm
