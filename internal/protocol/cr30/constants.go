package cr30

// 帧起始字节
const (
	StartHandshake = 0xAA // 握手/查询帧
	StartCommand   = 0xBB // 命令帧
)

// 命令码
const (
	CmdIdentity  = 0x0A // 设备信息查询 (0xAA)
	CmdMeasure   = 0x01 // 测量触发与数据块读取
	CmdBlackCal  = 0x10 // 黑板校准
	CmdWhiteCal  = 0x11 // 白板校准
	CmdCheck     = 0x13 // 链路确认 ("Check")
	CmdInit      = 0x17 // 设备初始化
	CmdParamQery = 0x28 // 参数查询
)

// 设备信息查询子命令 (cmd=0x0A)
const (
	SubIdentName     = 0x00 // 名称 + 型号
	SubIdentSerial   = 0x01 // 序列号
	SubIdentFirmware = 0x02 // 固件版本 + 构建号
	SubIdentStatus   = 0x03 // 状态，读取但不解析
)

// 测量子命令 (cmd=0x01)
const (
	SubMeasureTrigger = 0x00 // 主机触发测量
	SubMeasureHeader  = 0x09 // 设备侧按键测量头帧
	ChunkFirst        = 0x10 // 第一个光谱数据块
	ChunkSecond       = 0x11
	ChunkThird        = 0x12
	ChunkTerm         = 0x13 // 终止块，不携带光谱数据
)

// ParamIndexes 参数查询索引序列 (cmd=0x28)
var ParamIndexes = []byte{0x00, 0x01, 0x02, 0x03, 0xFF}

// CheckPayload 握手确认载荷，"Check" 补零至12字节
var CheckPayload = []byte{'C', 'h', 'e', 'c', 'k', 0, 0, 0, 0, 0, 0, 0}
