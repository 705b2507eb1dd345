/*
Package testutil 提供 modulebot 测试的共享工具。

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext
  - 等待辅助: WaitFor / WaitForChannel
  - 数据辅助: WriteManifest / MustParseJSON

子包 testutil/mocks 提供 MockHost（记录发送内容的 module.Host）与
MockFactory（可注入构造失败、停止失败与延迟的模块工厂）。
*/
package testutil
