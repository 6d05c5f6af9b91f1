package dbpebble

/*

Everything below one height shares the big-endian [h4] prefix so a block and all
its children sort together and can be removed with height scoped ranges.

0x01 header          key = [01][4 heightBE]                              val = [32 hash][32 prevHash][4 timestampBE]
0x02 header-by-hash  key = [02][32 hash][4 heightBE]                     val = []
0x03 header-by-prev  key = [03][32 prevHash][4 heightBE]                 val = []
0x04 header-by-time  key = [04][4 timestampBE][4 heightBE]               val = []
0x05 tx              key = [05][4 heightBE][2 txBE]                      val = [32 txid]
0x06 tx-by-hash      key = [06][32 txid][4 heightBE][2 txBE]             val = []
0x07 utxo            key = [07][4 heightBE][2 txBE][2 voutBE]            val = [8 amountBE][8 addrIDBE][script]
0x08 input           key = [08][4 heightBE][2 txBE][2 vinBE]             val = [1 resolution][4 heightBE][2 txBE][2 voutBE]
0x09 spent-by        key = [09][8 spent utxo ptr][8 spender input ptr]   val = []
0x0A addr-dict       key = [0A][address]                                 val = [8 addrIDBE]
0x0B addr-by-id      key = [0B][8 addrIDBE]                              val = [address]
0x0C addr-utxo       key = [0C][8 addrIDBE][8 utxo ptr]                  val = []

addrID 0 means the output has no derivable address. Ids start at 1.

*/
